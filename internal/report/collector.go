// Package report collects errors raised by long-running subsystems so a
// front end can show them. A Collector is created at application start,
// handed to the subsystems that report into it, and closed at shutdown.
package report

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// CategoryMeasurementRoutine is the category the routine engine reports under.
const CategoryMeasurementRoutine = "measurement_routine"

// CategoryScriptValidation is the category for edit-time validation failures.
const CategoryScriptValidation = "script_validation"

// DefaultCapacity is the number of entries kept per collector.
const DefaultCapacity = 256

// Entry is one reported error.
type Entry struct {
	Category string    `json:"category"`
	Code     string    `json:"code,omitempty"`
	Message  string    `json:"message"`
	RunID    string    `json:"run_id,omitempty"`
	Cycle    int64     `json:"cycle,omitempty"`
	Time     time.Time `json:"time"`
}

// Collector stores reported entries, oldest first. When full, the oldest
// entry is dropped.
//
// Thread-safety: all methods are safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	closed   bool
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithCapacity sets the maximum number of entries kept.
func WithCapacity(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the logger entries are echoed to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// WithClock sets the time source used to stamp entries without a time.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates an open collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		capacity: DefaultCapacity,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report records an entry. Entries reported after Close are dropped.
func (c *Collector) Report(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("report dropped after close",
			"category", e.Category,
			"code", e.Code,
		)
		return
	}
	if e.Time.IsZero() {
		e.Time = c.now()
	}
	if len(c.entries) == c.capacity {
		c.entries = slices.Delete(c.entries, 0, 1)
	}
	c.entries = append(c.entries, e)

	c.logger.Warn("error reported",
		"category", e.Category,
		"code", e.Code,
		"message", e.Message,
		"run_id", e.RunID,
		"cycle", e.Cycle,
	)
}

// Entries returns a copy of all entries, oldest first.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

// ByCategory returns the entries of one category, oldest first.
func (c *Collector) ByCategory(category string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Entry
	for _, e := range c.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Clear removes the entries of one category, or all entries when category
// is empty. It returns the number removed.
func (c *Collector) Clear(category string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.entries)
	if category == "" {
		c.entries = nil
		return before
	}
	c.entries = slices.DeleteFunc(c.entries, func(e Entry) bool {
		return e.Category == category
	})
	return before - len(c.entries)
}

// Len returns the number of stored entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the collector from accepting entries. Stored entries stay
// readable. Close is idempotent.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
