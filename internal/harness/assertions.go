package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/labroutine/internal/ir"
)

// Assertion types.
const (
	AssertDispatchOrder = "dispatch_order"
	AssertDispatchCount = "dispatch_count"
	AssertStepOutcome   = "step_outcome"
	AssertFinalCounters = "final_counters"
	AssertGlobalCounter = "global_counter"
	AssertRoutineArray  = "routine_array"
	AssertRunState      = "run_state"
	AssertRecordCount   = "record_count"
	AssertReported      = "reported"
)

// Assertion validates part of a scenario result. Which fields apply
// depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Models is the expected dispatch order (dispatch_order).
	Models []int `yaml:"models,omitempty"`

	// Model restricts dispatch_count, and selects the model of
	// final_counters.
	Model *int `yaml:"model,omitempty"`

	// Count is the expected number (dispatch_count, record_count).
	Count int `yaml:"count,omitempty"`

	// Step is the 1-based step of step_outcome.
	Step int `yaml:"step,omitempty"`

	// State is the expected engine state (step_outcome) or persisted run
	// state (run_state).
	State string `yaml:"state,omitempty"`

	// Reason is the expected stop reason (step_outcome).
	Reason string `yaml:"reason,omitempty"`

	// Code is the expected fault code (step_outcome, reported).
	Code string `yaml:"code,omitempty"`

	// Value is the expected global counter (global_counter).
	Value int64 `yaml:"value,omitempty"`

	// Values is the expected routine array (routine_array).
	Values []float64 `yaml:"values,omitempty"`

	// Expect holds expected counter values by name (final_counters).
	// Only the named counters are compared.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		switch event.Type {
		case EventDispatch:
			fmt.Fprintf(&buf, "  [%d] step %d cycle %d: model %d iteration %d\n",
				i+1, event.Step, event.Cycle, event.Model, event.Iteration)
		case EventEnd:
			fmt.Fprintf(&buf, "  [%d] step %d ended %s %s%s\n",
				i+1, event.Step, event.State, event.Reason, event.Code)
		}
	}

	return buf.String()
}

// counterFields reads the counters final_counters can compare.
var counterFields = map[string]func(ir.Counters) any{
	"iteration_of_scan":      func(c ir.Counters) any { return int64(c.IterationOfScan) },
	"completed_scans":        func(c ir.Counters) any { return int64(c.CompletedScans) },
	"start_counter_of_scans": func(c ir.Counters) any { return c.StartCounterOfScans },
	"gc_is_set":              func(c ir.Counters) any { return c.GCIsSet },
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertDispatchOrder:
		return assertDispatchOrder(result, a)
	case AssertDispatchCount:
		return assertDispatchCount(result, a)
	case AssertStepOutcome:
		return assertStepOutcome(result, a)
	case AssertFinalCounters:
		return assertFinalCounters(result, a)
	case AssertGlobalCounter:
		if result.Final.GlobalCounter != a.Value {
			return mismatch(result, a.Type, a.Value, result.Final.GlobalCounter)
		}
	case AssertRoutineArray:
		want := a.Values
		if want == nil {
			want = []float64{}
		}
		got := result.Final.RoutineArray
		if got == nil {
			got = []float64{}
		}
		if !slices.Equal(want, got) {
			return mismatch(result, a.Type, want, got)
		}
	case AssertRunState:
		if string(result.Final.RunState) != a.State {
			return mismatch(result, a.Type, a.State, result.Final.RunState)
		}
	case AssertRecordCount:
		if result.Final.Records != a.Count {
			return mismatch(result, a.Type, a.Count, result.Final.Records)
		}
	case AssertReported:
		if !slices.Contains(result.Final.Reported, a.Code) {
			return mismatch(result, a.Type, a.Code, result.Final.Reported)
		}
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func mismatch(result *Result, typ string, want, got any) error {
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertDispatchOrder(result *Result, a Assertion) error {
	var got []int
	for _, d := range result.Dispatches() {
		got = append(got, d.Model)
	}
	if !slices.Equal(a.Models, got) {
		return mismatch(result, a.Type, a.Models, got)
	}
	return nil
}

func assertDispatchCount(result *Result, a Assertion) error {
	count := 0
	for _, d := range result.Dispatches() {
		if a.Model == nil || d.Model == *a.Model {
			count++
		}
	}
	if count != a.Count {
		what := "dispatches"
		if a.Model != nil {
			what = fmt.Sprintf("dispatches of model %d", *a.Model)
		}
		return mismatch(result, a.Type, fmt.Sprintf("%d %s", a.Count, what), fmt.Sprintf("%d %s", count, what))
	}
	return nil
}

func assertStepOutcome(result *Result, a Assertion) error {
	end, ok := result.StepEnd(a.Step)
	if !ok {
		return fmt.Errorf("step %d did not run", a.Step)
	}
	if a.State != "" && end.State != a.State {
		return mismatch(result, a.Type, "state "+a.State, "state "+end.State)
	}
	if a.Reason != "" && end.Reason != a.Reason {
		return mismatch(result, a.Type, "reason "+a.Reason, "reason "+end.Reason)
	}
	if a.Code != "" && end.Code != a.Code {
		return mismatch(result, a.Type, "code "+a.Code, "code "+end.Code)
	}
	return nil
}

func assertFinalCounters(result *Result, a Assertion) error {
	model := *a.Model
	if model < 0 || model >= len(result.Final.Counters) {
		return fmt.Errorf("no counters for model %d", model)
	}
	c := result.Final.Counters[model]

	for key, want := range a.Expect {
		read, ok := counterFields[key]
		if !ok {
			return fmt.Errorf("unknown counter %q", key)
		}
		got := read(c)
		if !counterEqual(want, got) {
			return mismatch(result, a.Type,
				fmt.Sprintf("model %d %s = %v", model, key, want),
				fmt.Sprintf("model %d %s = %v", model, key, got))
		}
	}
	return nil
}

// counterEqual compares a YAML value with a counter read by counterFields.
func counterEqual(want, got any) bool {
	switch w := want.(type) {
	case int:
		g, ok := got.(int64)
		return ok && g == int64(w)
	case bool:
		g, ok := got.(bool)
		return ok && g == w
	default:
		return false
	}
}
