package extraction

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// DefaultBudget is the number of progress ticks one extraction reports
const DefaultBudget = 50

// ErrUnsupported is reported when no extractor recognises an archive
var ErrUnsupported = errors.New("unsupported archive format")

// Event is one step of an extraction. Every extraction yields zero or more
// tick events followed by exactly one terminal event with Done set. A
// consumer that stops ranging early cancels the extraction between entries.
type Event struct {
	Entry  string
	Tick   int
	Budget int
	Done   bool
	Err    error
}

// Extractor defines the behavior for extracting compressed archives
type Extractor interface {
	// Extract unpacks the archive at archivePath into destDir as a lazy
	// sequence of progress events.
	Extract(ctx context.Context, archivePath string, destDir string) iter.Seq[Event]

	// CanExtract checks if this extractor can handle the given file.
	CanExtract(filePath string) (bool, error)

	// Returns the human-readable name of this extractor (e.g. "ZIP", "7-Zip")
	Name() string
}

// Manager handles multiple extractors and determines which to use
type Manager struct {
	extractors []Extractor
}

// NewManager creates an extraction manager. The native zip extractor is
// always present; the 7-Zip CLI is added when its binary is on PATH.
func NewManager(budget int) *Manager {
	m := &Manager{
		extractors: []Extractor{NewZip(budget)},
	}

	if sevenZ, err := NewCLI7z(budget); err == nil {
		m.extractors = append(m.extractors, sevenZ)
	}

	return m
}

// AvailableExtractors returns the names of available extractors
func (m *Manager) AvailableExtractors() []string {
	names := make([]string, len(m.extractors))
	for i, ext := range m.extractors {
		names[i] = ext.Name()
	}
	return names
}

// Detect returns the first extractor that recognises the archive
func (m *Manager) Detect(archivePath string) (Extractor, error) {
	for _, extractor := range m.extractors {
		ok, err := extractor.CanExtract(archivePath)
		if err != nil {
			return nil, fmt.Errorf("error checking if %s can extract %s: %w", extractor.Name(), archivePath, err)
		}
		if ok {
			return extractor, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, archivePath)
}

// Extract picks an extractor and runs it. Detection failures are reported
// as a single terminal event so callers only handle one shape.
func (m *Manager) Extract(ctx context.Context, archivePath, destDir string) iter.Seq[Event] {
	extractor, err := m.Detect(archivePath)
	if err != nil {
		return func(yield func(Event) bool) {
			yield(Event{Done: true, Err: err})
		}
	}
	return extractor.Extract(ctx, archivePath, destDir)
}

// ticker turns "entries done out of total" into individual percentage
// ticks, each emitted once and in order up to budget.
type ticker struct {
	budget int
	total  int
	last   int
}

func newTicker(budget, total int) *ticker {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &ticker{budget: budget, total: total}
}

func (t *ticker) advance(done int) []int {
	if t.total == 0 {
		return nil
	}
	return t.to(done * t.budget / t.total)
}

// flush emits whatever integer division left behind
func (t *ticker) flush() []int {
	return t.to(t.budget)
}

func (t *ticker) to(current int) []int {
	current = min(current, t.budget)
	if current <= t.last {
		return nil
	}
	ticks := make([]int, 0, current-t.last)
	for j := t.last + 1; j <= current; j++ {
		ticks = append(ticks, j)
	}
	t.last = current
	return ticks
}
