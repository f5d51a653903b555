// Package level infers where each level is in its install lifecycle by
// inspecting the filesystem, and performs the file operations that move it
// toward installed and playable.
//
// Inferred state is never trusted across calls: every status query inspects
// again, so an interrupted earlier run is simply picked up where it stopped.
package level

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/levelkeep/internal/dispatch"
	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/download"
	"github.com/datallboy/levelkeep/internal/fileops"
	"github.com/datallboy/levelkeep/internal/infra/logger"
	"github.com/datallboy/levelkeep/internal/runner"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownLevel     = errors.New("unknown level")
	ErrDownloadInFlight = errors.New("download already in flight")
	ErrBroken           = errors.New("level is broken")
	ErrNotPlayable      = errors.New("level is not playable")
	ErrNoProgress       = errors.New("transition made no progress")
)

// Progress is published for extraction ticks (Budget > 0) and for every
// change of inferred state.
type Progress struct {
	LevelID int
	State   domain.LevelState
	Tick    int
	Budget  int
}

// IsTick reports whether p carries extraction progress
func (p Progress) IsTick() bool {
	return p.Budget > 0
}

type Option func(*Machine)

// WithWorkers bounds how many levels RefreshAll inspects at once
func WithWorkers(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.workers = n
		}
	}
}

type Machine struct {
	ops        *fileops.FileOps
	downloader download.Downloader
	runner     runner.Runner
	dispatcher *dispatch.Dispatcher
	log        *logger.Logger
	workers    int

	// ctx outlives individual requests; downloads and resumed installs run on it
	ctx    context.Context
	cancel context.CancelFunc

	levels map[int]*entry
	ids    []int

	mu        sync.Mutex
	gameLocks map[string]*sync.Mutex
	listeners map[int]func(Progress)
	nextSub   int
}

type entry struct {
	desc domain.Descriptor

	// mu serializes transitions of this level
	mu sync.Mutex

	recMu      sync.Mutex
	rec        domain.Record
	installing int
	resume     bool
	stop       context.CancelFunc
	changed    chan struct{}
}

// broadcast wakes Wait callers; recMu must be held
func (e *entry) broadcast() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// New builds a Machine over the given descriptors. Descriptors are defaulted
// and validated; duplicate ids are rejected.
func New(ops *fileops.FileOps, descs []domain.Descriptor, dl download.Downloader, run runner.Runner,
	disp *dispatch.Dispatcher, log *logger.Logger, opts ...Option) (*Machine, error) {
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		ops:        ops,
		downloader: dl,
		runner:     run,
		dispatcher: disp,
		log:        log,
		workers:    4,
		ctx:        ctx,
		cancel:     cancel,
		levels:     make(map[int]*entry, len(descs)),
		gameLocks:  make(map[string]*sync.Mutex),
		listeners:  make(map[int]func(Progress)),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, d := range descs {
		d.ApplyDefaults()
		if err := d.Validate(); err != nil {
			cancel()
			return nil, err
		}
		if _, dup := m.levels[d.ID]; dup {
			cancel()
			return nil, fmt.Errorf("%w: duplicate level id %d", domain.ErrInvalidDescriptor, d.ID)
		}
		m.levels[d.ID] = &entry{
			desc:    d,
			rec:     domain.Record{ID: d.ID, Name: d.DisplayName, State: domain.StateUnknown},
			changed: make(chan struct{}),
		}
		m.ids = append(m.ids, d.ID)
	}
	slices.Sort(m.ids)

	return m, nil
}

// Close cancels in-flight downloads and resumed installs
func (m *Machine) Close() {
	m.cancel()
}

// OnProgress subscribes fn to progress and state changes. fn runs on the
// goroutine doing the work and must return quickly. The returned func
// unsubscribes.
func (m *Machine) OnProgress(fn func(Progress)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Machine) emit(p Progress) {
	m.mu.Lock()
	fns := make([]func(Progress), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// gameLock serializes transitions of levels whose game paths overlap. Paths
// are keyed by their first segment, so "TR4" and "./TR4/data" share a lock.
func (m *Machine) gameLock(gamePath string) *sync.Mutex {
	key := gameLockKey(gamePath)

	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.gameLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.gameLocks[key] = l
	}
	return l
}

func gameLockKey(gamePath string) string {
	clean := filepath.ToSlash(filepath.Clean(gamePath))
	top, _, _ := strings.Cut(clean, "/")
	return top
}

func (m *Machine) lookup(id int) (*entry, error) {
	e, ok := m.levels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLevel, id)
	}
	return e, nil
}

// IDs returns every known level id in ascending order
func (m *Machine) IDs() []int {
	return slices.Clone(m.ids)
}

func (m *Machine) Descriptor(id int) (domain.Descriptor, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Descriptor{}, err
	}
	return e.desc, nil
}

// Record returns the cached record without probing
func (m *Machine) Record(id int) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.rec, nil
}

// Records returns every cached record ordered by id
func (m *Machine) Records() []domain.Record {
	out := make([]domain.Record, 0, len(m.ids))
	for _, id := range m.ids {
		e := m.levels[id]
		e.recMu.Lock()
		out = append(out, e.rec)
		e.recMu.Unlock()
	}
	return out
}

// Refresh re-infers one level's state from the filesystem
func (m *Machine) Refresh(id int) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}
	return m.refresh(e), nil
}

// RefreshAll re-infers every level, probing up to the configured number of
// levels concurrently.
func (m *Machine) RefreshAll(ctx context.Context) ([]domain.Record, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, id := range m.ids {
		e := m.levels[id]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.refresh(e)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return m.Records(), err
	}
	return m.Records(), nil
}

func (m *Machine) refresh(e *entry) domain.Record {
	state, err := m.infer(&e.desc)

	e.recMu.Lock()
	prev := e.rec.State
	e.rec.State = state
	e.rec.CheckedAt = time.Now()
	if err != nil {
		e.rec.LastError = err.Error()
	}
	rec := e.rec
	e.broadcast()
	e.recMu.Unlock()

	if err != nil {
		m.log.Warn("Level %d is broken: %v", e.desc.ID, err)
	}
	if prev != state {
		m.log.Debug("Level %d: %s -> %s", e.desc.ID, prev, state)
		m.emit(Progress{LevelID: e.desc.ID, State: state})
	}
	return rec
}

func (m *Machine) setError(e *entry, err error) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if err == nil {
		e.rec.LastError = ""
	} else {
		e.rec.LastError = err.Error()
	}
	e.broadcast()
}

// Retry clears the last error and re-infers
func (m *Machine) Retry(id int) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}
	m.setError(e, nil)
	return m.refresh(e), nil
}

// Wait blocks until the level has no download in flight and no install
// running, then returns its record.
func (m *Machine) Wait(ctx context.Context, id int) (domain.Record, error) {
	e, err := m.lookup(id)
	if err != nil {
		return domain.Record{}, err
	}

	for {
		e.recMu.Lock()
		idle := !e.rec.Downloading && e.installing == 0
		rec := e.rec
		ch := e.changed
		e.recMu.Unlock()

		if idle {
			return rec, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return rec, ctx.Err()
		}
	}
}
