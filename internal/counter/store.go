// Package counter holds the per-model counters of a measurement routine.
//
// The store is keyed by model index and enforces the counter invariants:
//   - IterationOfScan never falls below 1 and wraps to 1 once it passes
//     the model's scan size, incrementing CompletedScans by exactly one
//   - StartCounterOfScans is stamped at most once per scan-set, guarded
//     by GCIsSet, and only Reset clears the guard
//
// Thread-safety: all methods are safe for concurrent use. The engine is the
// only writer; other goroutines read snapshots for status reporting.
package counter

import (
	"fmt"
	"sync"

	"github.com/roach88/labroutine/internal/ir"
)

// Store holds counters for every model of a routine.
type Store struct {
	mu           sync.Mutex
	counters     map[int]*ir.Counters
	scanSizes    map[int]int
	scanOnlyOnce bool
}

// Option configures a Store.
type Option func(*Store)

// WithScanOnlyOnce stops a model from advancing once it completed a scan.
func WithScanOnlyOnce(enabled bool) Option {
	return func(s *Store) {
		s.scanOnlyOnce = enabled
	}
}

// New creates a store with fresh counters for each model.
// The scan size of each model is taken from its iterator variables.
func New(models []ir.Model, opts ...Option) *Store {
	s := &Store{
		counters:  make(map[int]*ir.Counters, len(models)),
		scanSizes: make(map[int]int, len(models)),
	}
	for _, m := range models {
		c := ir.NewCounters()
		s.counters[m.Index] = &c
		s.scanSizes[m.Index] = m.ScanSize()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UnknownModelError is returned for a model index the store does not hold.
type UnknownModelError struct {
	Index int
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model index %d", e.Index)
}

func (s *Store) lookup(index int) (*ir.Counters, error) {
	c, ok := s.counters[index]
	if !ok {
		return nil, &UnknownModelError{Index: index}
	}
	return c, nil
}

// BeginScanSet stamps StartCounterOfScans with the global counter the
// first time it is called for a scan-set. Later calls are no-ops until the
// model is Reset.
func (s *Store) BeginScanSet(index int, globalCounter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(index)
	if err != nil {
		return err
	}
	if c.GCIsSet {
		return nil
	}
	c.StartCounterOfScans = globalCounter
	c.GCIsSet = true
	return nil
}

// AdvanceIteration moves the model to its next iteration. When the
// iteration passes the scan size it wraps to 1 and CompletedScans is
// incremented. Returns true when this call completed a scan.
//
// Models that are not iterating never advance, and neither do models that
// already completed a scan when scan-only-once is enabled.
func (s *Store) AdvanceIteration(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(index)
	if err != nil {
		return false, err
	}
	size := s.scanSizes[index]
	if size == 0 {
		return false, nil
	}
	if s.scanOnlyOnce && c.CompletedScans > 0 {
		return false, nil
	}

	c.IterationOfScan++
	if c.IterationOfScan > size {
		c.IterationOfScan = 1
		c.CompletedScans++
		return true, nil
	}
	return false, nil
}

// IsAdvancing reports whether AdvanceIteration would move the model.
func (s *Store) IsAdvancing(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[index]
	if !ok || s.scanSizes[index] == 0 {
		return false
	}
	return !(s.scanOnlyOnce && c.CompletedScans > 0)
}

// Reset returns one model's counters to their initial state.
func (s *Store) Reset(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(index)
	if err != nil {
		return err
	}
	c.Reset()
	return nil
}

// ResetAll resets every model. Used when a fresh run starts.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.counters {
		c.Reset()
	}
}

// Get returns a copy of one model's counters.
func (s *Store) Get(index int) (ir.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(index)
	if err != nil {
		return ir.Counters{}, err
	}
	return *c, nil
}

// ScanSize returns the configured scan size of a model.
func (s *Store) ScanSize(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(index); err != nil {
		return 0, err
	}
	return s.scanSizes[index], nil
}

// Len returns the number of models in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Snapshot returns copies of all counters ordered by model index.
func (s *Store) Snapshot() []ir.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ir.Counters, len(s.counters))
	for i := range out {
		if c, ok := s.counters[i]; ok {
			out[i] = *c
		}
	}
	return out
}

// Restore replaces all counters with a snapshot taken by Snapshot.
// The snapshot must hold exactly one entry per model.
func (s *Store) Restore(snapshot []ir.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(snapshot) != len(s.counters) {
		return fmt.Errorf("restore counters: snapshot has %d models, store has %d", len(snapshot), len(s.counters))
	}
	for i, c := range snapshot {
		if c.IterationOfScan < 1 {
			return fmt.Errorf("restore counters: model %d has iteration %d", i, c.IterationOfScan)
		}
		dst, err := s.lookup(i)
		if err != nil {
			return fmt.Errorf("restore counters: %w", err)
		}
		*dst = c
	}
	return nil
}
