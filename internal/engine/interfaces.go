package engine

import (
	"context"

	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/report"
)

// Gateway durably records runs and next-model records.
// Implemented by store.Store.
type Gateway interface {
	// BeginRun records a run as running. Calling it again for an existing
	// run marks it running again and clears its fault.
	BeginRun(ctx context.Context, run ir.Run) error

	// WriteNextModel atomically records the model selected by a cycle.
	// It must be durable when it returns nil.
	WriteNextModel(ctx context.Context, rec ir.NextModelRecord) error

	// MarkDispatched records that the dispatcher accepted a cycle's model.
	MarkDispatched(ctx context.Context, runID string, cycle int64) error

	// LatestRun returns the most recently started run.
	LatestRun(ctx context.Context) (ir.Run, bool, error)

	// LatestRecord returns the record of a run's last committed cycle.
	LatestRecord(ctx context.Context, runID string) (ir.NextModelRecord, bool, error)

	// FinishRun records the final state of a run.
	FinishRun(ctx context.Context, runID string, state ir.RunState, fault string) error
}

// Dispatcher hands a selected model to the hardware. Dispatch blocks until
// the hardware finished the model.
type Dispatcher interface {
	Dispatch(ctx context.Context, d ir.Dispatch) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, d ir.Dispatch) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, d ir.Dispatch) error {
	return f(ctx, d)
}

// Reporter receives faults for display. Implemented by report.Collector.
type Reporter interface {
	Report(e report.Entry)
}
