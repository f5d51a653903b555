// Package dispatch routes completion notices from background work (downloads)
// back to whoever is waiting on that level. Producers enqueue on a buffered
// channel; a single consumer started with Run invokes the callbacks.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/datallboy/levelkeep/internal/infra/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBuffer is the queue size used when New is given a non-positive one
const DefaultBuffer = 64

// Completion reports that asynchronous work for a level finished
type Completion struct {
	LevelID   int
	RequestID string
	Err       error
}

// Callback handles one completion. It runs on the dispatcher's goroutine and
// must not block for long.
type Callback func(Completion)

type Dispatcher struct {
	mu        sync.Mutex
	callbacks map[int]Callback

	queue chan Completion
	log   *logger.Logger

	// OTEL metrics
	processed metric.Int64Counter
	unrouted  metric.Int64Counter
}

// New creates a Dispatcher. Uses the global OTel meter for metrics (no-op if
// not configured).
func New(log *logger.Logger, buffer int) (*Dispatcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	d := &Dispatcher{
		callbacks: make(map[int]Callback),
		queue:     make(chan Completion, buffer),
		log:       log,
	}

	m := meter()

	var err error

	d.processed, err = m.Int64Counter(
		"dispatch.completions.processed",
		metric.WithDescription("Completions delivered to a registered callback"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.unrouted, err = m.Int64Counter(
		"dispatch.completions.unrouted",
		metric.WithDescription("Completions with no callback registered for their level"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating unrouted counter: %w", err)
	}

	return d, nil
}

// Register sets the callback for a level, replacing any previous one. The
// callback fires at most once.
func (d *Dispatcher) Register(levelID int, cb Callback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[levelID] = cb
}

// Unregister drops the callback for a level, if any
func (d *Dispatcher) Unregister(levelID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.callbacks, levelID)
}

// Registered reports whether a callback is waiting for the level
func (d *Dispatcher) Registered(levelID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.callbacks[levelID]
	return ok
}

// Notify enqueues a completion for Run to deliver. It blocks while the queue
// is full, until ctx is done.
func (d *Dispatcher) Notify(ctx context.Context, c Completion) error {
	select {
	case d.queue <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run delivers queued completions until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-d.queue:
			d.Invoke(c)
		}
	}
}

// Invoke delivers c synchronously. Completions for levels nobody waits on are
// logged and counted, never surfaced as errors.
func (d *Dispatcher) Invoke(c Completion) bool {
	d.mu.Lock()
	cb, ok := d.callbacks[c.LevelID]
	delete(d.callbacks, c.LevelID)
	d.mu.Unlock()

	levelAttr := metric.WithAttributes(attribute.Int("level", c.LevelID))

	if !ok {
		d.log.Warn("No callback registered for level %d (request %s)", c.LevelID, c.RequestID)
		d.unrouted.Add(context.Background(), 1, levelAttr)
		return false
	}

	cb(c)
	d.processed.Add(context.Background(), 1, levelAttr)
	return true
}
