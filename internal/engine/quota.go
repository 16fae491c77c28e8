package engine

import "fmt"

// CycleQuota counts the cycles executed by one Start or Resume call and
// enforces an optional limit. A limit of 0 means unlimited.
type CycleQuota struct {
	maxCycles int
	current   int
}

// NewCycleQuota creates a quota with the given limit.
func NewCycleQuota(maxCycles int) *CycleQuota {
	return &CycleQuota{maxCycles: maxCycles}
}

// Check returns CyclesExhaustedError if another cycle would exceed the
// limit. It does not count the cycle; call Spend once it ran.
func (q *CycleQuota) Check(runID string) error {
	if q.maxCycles > 0 && q.current >= q.maxCycles {
		return &CyclesExhaustedError{RunID: runID, Cycles: q.current, Limit: q.maxCycles}
	}
	return nil
}

// Spend records one executed cycle.
func (q *CycleQuota) Spend() {
	q.current++
}

// CyclesExhaustedError reports that the cycle limit was reached. The run
// stops cleanly; this is not a fault.
type CyclesExhaustedError struct {
	RunID  string
	Cycles int
	Limit  int
}

// Error implements the error interface.
func (e *CyclesExhaustedError) Error() string {
	return fmt.Sprintf("run %s reached its cycle limit: %d cycles, limit %d",
		e.RunID, e.Cycles, e.Limit)
}
