package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/labroutine/internal/ir"
)

// ErrInjected is the error returned by injected failures.
var ErrInjected = errors.New("injected failure")

// MemoryGateway keeps runs and next-model records in memory.
// Failures can be injected per cycle.
//
// Thread-safety: safe for concurrent use via internal mutex.
type MemoryGateway struct {
	mu       sync.Mutex
	runs     map[string]ir.Run
	runOrder []string
	records  map[string][]ir.NextModelRecord

	failWriteAt int64
	failMarkAt  int64
	failBegin   bool
}

// NewMemoryGateway creates an empty gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		runs:    make(map[string]ir.Run),
		records: make(map[string][]ir.NextModelRecord),
	}
}

// FailWriteAt makes WriteNextModel fail for the given cycle; 0 disables.
func (g *MemoryGateway) FailWriteAt(cycle int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWriteAt = cycle
}

// FailMarkAt makes MarkDispatched fail for the given cycle; 0 disables.
func (g *MemoryGateway) FailMarkAt(cycle int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failMarkAt = cycle
}

// FailBegin makes BeginRun fail.
func (g *MemoryGateway) FailBegin(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failBegin = fail
}

// BeginRun implements engine.Gateway.
func (g *MemoryGateway) BeginRun(_ context.Context, run ir.Run) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failBegin {
		return ErrInjected
	}
	if prev, ok := g.runs[run.ID]; ok {
		run.Shuffle = prev.Shuffle
		run.Seed = prev.Seed
	} else {
		g.runOrder = append(g.runOrder, run.ID)
	}
	run.State = ir.RunStateRunning
	run.Fault = ""
	g.runs[run.ID] = run
	return nil
}

// WriteNextModel implements engine.Gateway.
func (g *MemoryGateway) WriteNextModel(_ context.Context, rec ir.NextModelRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failWriteAt != 0 && rec.Cycle == g.failWriteAt {
		return ErrInjected
	}
	if _, ok := g.runs[rec.RunID]; !ok {
		return fmt.Errorf("unknown run %s", rec.RunID)
	}
	rec.Dispatched = false
	rec.Counters = slices.Clone(rec.Counters)
	rec.RoutineArray = slices.Clone(rec.RoutineArray)
	g.records[rec.RunID] = append(g.records[rec.RunID], rec)
	return nil
}

// MarkDispatched implements engine.Gateway.
func (g *MemoryGateway) MarkDispatched(_ context.Context, runID string, cycle int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failMarkAt != 0 && cycle == g.failMarkAt {
		return ErrInjected
	}
	recs := g.records[runID]
	for i := range recs {
		if recs[i].Cycle == cycle {
			recs[i].Dispatched = true
			return nil
		}
	}
	return fmt.Errorf("no record for run %s cycle %d", runID, cycle)
}

// LatestRun implements engine.Gateway.
func (g *MemoryGateway) LatestRun(_ context.Context) (ir.Run, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.runOrder) == 0 {
		return ir.Run{}, false, nil
	}
	return g.runs[g.runOrder[len(g.runOrder)-1]], true, nil
}

// LatestRecord implements engine.Gateway.
func (g *MemoryGateway) LatestRecord(_ context.Context, runID string) (ir.NextModelRecord, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	recs := g.records[runID]
	if len(recs) == 0 {
		return ir.NextModelRecord{}, false, nil
	}
	return recs[len(recs)-1], true, nil
}

// FinishRun implements engine.Gateway.
func (g *MemoryGateway) FinishRun(_ context.Context, runID string, state ir.RunState, fault string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	run, ok := g.runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	run.State = state
	run.Fault = fault
	g.runs[runID] = run
	return nil
}

// Records returns the records of a run in cycle order.
func (g *MemoryGateway) Records(runID string) []ir.NextModelRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.records[runID])
}

// Run returns a run by id.
func (g *MemoryGateway) Run(runID string) (ir.Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	run, ok := g.runs[runID]
	return run, ok
}

// UndispatchLatest clears the dispatched flag of a run's last record,
// simulating a crash between commit and dispatch.
func (g *MemoryGateway) UndispatchLatest(runID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	recs := g.records[runID]
	if len(recs) > 0 {
		recs[len(recs)-1].Dispatched = false
	}
}

// SetRunState overwrites a run's state, simulating a crash that left the
// run marked running.
func (g *MemoryGateway) SetRunState(runID string, state ir.RunState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	run := g.runs[runID]
	run.State = state
	g.runs[runID] = run
}
