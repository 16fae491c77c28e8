package ir

// Counters are the counters specific to one model.
type Counters struct {
	// IterationOfScan is the 1-based iteration within the current scan.
	IterationOfScan int `json:"iteration_of_scan"`

	// CompletedScans is the number of scans completed for the model.
	CompletedScans int `json:"completed_scans"`

	// StartCounterOfScans is the value of the global counter when the
	// model's current set of scans started.
	StartCounterOfScans int64 `json:"start_counter_of_scans"`

	// GCIsSet guards StartCounterOfScans against being set more than
	// once per scan-set.
	GCIsSet bool `json:"gc_is_set"`
}

// NewCounters returns counters for a model that has not run yet.
func NewCounters() Counters {
	return Counters{IterationOfScan: 1}
}

// Reset returns the counters to their initial state.
func (c *Counters) Reset() {
	c.GCIsSet = false
	c.IterationOfScan = 1
	c.CompletedScans = 0
}
