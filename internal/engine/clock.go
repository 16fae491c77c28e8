package engine

import "sync/atomic"

// Clock is the global counter of a run: a logical clock that ticks once
// per committed cycle.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the run loop advances it; Status reads it from other goroutines.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific value.
// Used when resuming a run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Set moves the clock to n. Used for a fresh start, a resume, and for
// rolling back a cycle that failed to commit.
func (c *Clock) Set(n int64) {
	c.seq.Store(n)
}
