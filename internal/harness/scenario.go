package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionStart  = "start"
	ActionResume = "resume"
)

// Scenario defines a routine scenario: a routine, the steps that run it
// and the assertions on what happened.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Routine is the path of the CUE routine file. LoadScenario resolves
	// it relative to the scenario file.
	Routine string `yaml:"routine"`

	// RoutineName selects a routine when the file defines several.
	RoutineName string `yaml:"routine_name,omitempty"`

	// Modes, when set, replaces the control script: cycle n selects
	// Modes[n-1], and the last entry repeats. The routine's scripts are
	// still validated before every step.
	Modes []any `yaml:"modes,omitempty"`

	// Steps run in order, each with a fresh engine over the same database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step starts or resumes the routine once.
type Step struct {
	// Action is "start" or "resume".
	Action string `yaml:"action"`

	// Cycles limits the cycles of the step. 0 means DefaultCycleLimit.
	Cycles int `yaml:"cycles,omitempty"`

	// FailWriteAt makes the next-model write of that cycle fail.
	FailWriteAt int64 `yaml:"fail_write_at,omitempty"`

	// FailDispatchAt makes the hardware reject that cycle's model.
	FailDispatchAt int64 `yaml:"fail_dispatch_at,omitempty"`

	// StopAt requests a stop once that cycle's model was dispatched.
	StopAt int64 `yaml:"stop_at,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file, resolving the
// routine path relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos)
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Routine != "" && !filepath.IsAbs(scenario.Routine) {
		scenario.Routine = filepath.Join(filepath.Dir(path), scenario.Routine)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Routine == "" {
		return fmt.Errorf("routine is required")
	}
	if _, err := os.Stat(s.Routine); os.IsNotExist(err) {
		return fmt.Errorf("routine file not found: %s", s.Routine)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Action {
		case ActionStart, ActionResume:
		case "":
			return fmt.Errorf("steps[%d]: action is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		if step.Cycles < 0 {
			return fmt.Errorf("steps[%d]: cycles must be non-negative", i)
		}
		if step.FailWriteAt < 0 || step.FailDispatchAt < 0 || step.StopAt < 0 {
			return fmt.Errorf("steps[%d]: cycle numbers must be non-negative", i)
		}
	}

	for i, mode := range s.Modes {
		switch mode.(type) {
		case int, string:
		default:
			return fmt.Errorf("modes[%d]: must be an index or a model name, got %T", i, mode)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertDispatchOrder:
		if a.Models == nil {
			return fmt.Errorf("assertions[%d]: models list is required for dispatch_order", index)
		}
	case AssertDispatchCount, AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStepOutcome:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step must be between 1 and %d", index, steps)
		}
		if a.State == "" && a.Reason == "" && a.Code == "" {
			return fmt.Errorf("assertions[%d]: step_outcome needs a state, reason or code", index)
		}
	case AssertFinalCounters:
		if a.Model == nil {
			return fmt.Errorf("assertions[%d]: model is required for final_counters", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_counters", index)
		}
		for key := range a.Expect {
			if _, ok := counterFields[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown counter %q", index, key)
			}
		}
	case AssertGlobalCounter, AssertRoutineArray:
	case AssertRunState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for run_state", index)
		}
	case AssertReported:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for reported", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
