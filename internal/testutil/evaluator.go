package testutil

import (
	"context"
	"sync"

	"github.com/roach88/labroutine/internal/binding"
	"github.com/roach88/labroutine/internal/script"
)

// ModeFunc returns the current_mode value for a 1-based evaluation call.
// Returning an error makes the evaluation fail with a *script.RuntimeError.
type ModeFunc func(call int, in script.Bindings) (any, error)

// FakeEvaluator is a script.Evaluator that ignores the script text and
// sets current_mode from a ModeFunc. Every call is recorded.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FakeEvaluator struct {
	mu      sync.Mutex
	mode    ModeFunc
	calls   []script.Bindings
	sources []string
}

// NewFakeEvaluator creates an evaluator driven by mode.
func NewFakeEvaluator(mode ModeFunc) *FakeEvaluator {
	return &FakeEvaluator{mode: mode}
}

// AlwaysMode returns an evaluator that always selects v.
func AlwaysMode(v any) *FakeEvaluator {
	return NewFakeEvaluator(func(int, script.Bindings) (any, error) {
		return v, nil
	})
}

// ModeSequence returns an evaluator that selects the given values in
// order and then keeps selecting the last one.
func ModeSequence(values ...any) *FakeEvaluator {
	return NewFakeEvaluator(func(call int, _ script.Bindings) (any, error) {
		if call > len(values) {
			return values[len(values)-1], nil
		}
		return values[call-1], nil
	})
}

// Evaluate implements script.Evaluator.
func (f *FakeEvaluator) Evaluate(_ context.Context, src string, in script.Bindings) (script.Bindings, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in.Clone())
	f.sources = append(f.sources, src)
	call := len(f.calls)
	f.mu.Unlock()

	out := in.Clone()
	if f.mode == nil {
		return out, nil
	}
	v, err := f.mode(call, in)
	if err != nil {
		return nil, &script.RuntimeError{Message: err.Error()}
	}
	out[binding.VarCurrentMode] = v
	return out, nil
}

// Calls returns the bindings of every call, in order.
func (f *FakeEvaluator) Calls() []script.Bindings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]script.Bindings(nil), f.calls...)
}

// Sources returns the script text of every call, in order.
func (f *FakeEvaluator) Sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}
