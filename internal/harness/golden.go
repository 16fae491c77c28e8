package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/labroutine/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, slices and maps.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"step": event.Step,
		}
		switch event.Type {
		case EventDispatch:
			eventMap["cycle"] = event.Cycle
			eventMap["model"] = event.Model
			eventMap["iteration"] = event.Iteration
			eventMap["combination"] = event.Combination
			if len(event.Values) > 0 {
				values := make(map[string]any, len(event.Values))
				for k, v := range event.Values {
					values[k] = v
				}
				eventMap["values"] = values
			}
		case EventEnd:
			eventMap["state"] = event.State
			eventMap["global_counter"] = event.GlobalCounter
			eventMap["counters"] = countersList(event.Counters)
			if event.Reason != "" {
				eventMap["reason"] = event.Reason
			}
			if event.Code != "" {
				eventMap["code"] = event.Code
			}
			if event.Error != "" {
				eventMap["error"] = event.Error
			}
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

func countersList(counters []ir.Counters) []any {
	out := make([]any, len(counters))
	for i, c := range counters {
		out[i] = map[string]any{
			"iteration_of_scan":      c.IterationOfScan,
			"completed_scans":        c.CompletedScans,
			"start_counter_of_scans": c.StartCounterOfScans,
			"gc_is_set":              c.GCIsSet,
		}
	}
	return out
}

// TraceJSON returns the canonical JSON snapshot of the trace, the content
// of a golden file.
func (r *Result) TraceJSON(scenarioName string) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        r.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result, or an error if the scenario could not be executed.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := result.TraceJSON(scenarioName)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
