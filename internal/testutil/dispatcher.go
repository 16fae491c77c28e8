package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/labroutine/internal/ir"
)

// RecordingDispatcher records every dispatch. It can fail a given cycle
// and call a hook after each accepted dispatch.
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingDispatcher struct {
	mu         sync.Mutex
	dispatches []ir.Dispatch
	failAt     int64
	onDispatch func(ir.Dispatch)
}

// NewRecordingDispatcher creates a dispatcher that accepts everything.
func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

// FailAt makes Dispatch fail for the given cycle; 0 disables.
func (d *RecordingDispatcher) FailAt(cycle int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAt = cycle
}

// OnDispatch sets a hook called after each accepted dispatch.
func (d *RecordingDispatcher) OnDispatch(fn func(ir.Dispatch)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDispatch = fn
}

// Dispatch implements engine.Dispatcher.
func (d *RecordingDispatcher) Dispatch(_ context.Context, dispatch ir.Dispatch) error {
	d.mu.Lock()
	if d.failAt != 0 && dispatch.Cycle == d.failAt {
		d.mu.Unlock()
		return ErrInjected
	}
	d.dispatches = append(d.dispatches, dispatch)
	hook := d.onDispatch
	d.mu.Unlock()

	if hook != nil {
		hook(dispatch)
	}
	return nil
}

// Dispatches returns every accepted dispatch in order.
func (d *RecordingDispatcher) Dispatches() []ir.Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.dispatches)
}

// Models returns the model index of every accepted dispatch in order.
func (d *RecordingDispatcher) Models() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.dispatches))
	for i, dispatch := range d.dispatches {
		out[i] = dispatch.Model.Index
	}
	return out
}
