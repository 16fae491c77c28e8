package harness

import (
	"github.com/roach88/labroutine/internal/ir"
)

// Trace event types.
const (
	EventDispatch = "dispatch"
	EventEnd      = "end"
)

// TraceEvent is one entry of a scenario trace: a model handed to the
// hardware, or the end of a step.
type TraceEvent struct {
	Type string `json:"type"`
	Step int    `json:"step"`

	// Dispatch fields.
	Cycle       int64              `json:"cycle,omitempty"`
	Model       int                `json:"model"`
	Iteration   int                `json:"iteration"`
	Combination int                `json:"combination"`
	Values      map[string]float64 `json:"values,omitempty"`

	// End fields.
	State         string        `json:"state,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Code          string        `json:"code,omitempty"`
	Error         string        `json:"error,omitempty"`
	GlobalCounter int64         `json:"global_counter"`
	Counters      []ir.Counters `json:"counters,omitempty"`
}

// FinalState is what the scenario left behind after its last step.
type FinalState struct {
	RunID         string        `json:"run_id"`
	RunState      ir.RunState   `json:"run_state"`
	Records       int           `json:"records"`
	GlobalCounter int64         `json:"global_counter"`
	Counters      []ir.Counters `json:"counters"`
	RoutineArray  []float64     `json:"routine_array"`
	Reported      []string      `json:"reported,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace holds dispatches and step ends in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Dispatches returns the dispatch events of the trace.
func (r *Result) Dispatches() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventDispatch {
			out = append(out, e)
		}
	}
	return out
}

// StepEnd returns the end event of a 1-based step.
func (r *Result) StepEnd(step int) (TraceEvent, bool) {
	for _, e := range r.Trace {
		if e.Type == EventEnd && e.Step == step {
			return e, true
		}
	}
	return TraceEvent{}, false
}
