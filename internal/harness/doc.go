// Package harness runs measurement routine scenarios end to end.
//
// A scenario names a routine file and a list of steps. Each step starts or
// resumes the routine with a fresh engine over the same SQLite database,
// the way an operator restarts the application, so resume behavior is
// exercised against real persistence. Failures can be injected at a given
// cycle to simulate a lost write or a hardware error.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	routine: ../routines/calibration.cue
//	routine_name: calibration      # optional when the file has one routine
//	modes: [0, imaging, 0]         # optional, replaces the control script
//	steps:
//	  - action: start
//	    cycles: 3                  # optional cycle limit for the step
//	    fail_dispatch_at: 2        # optional injected hardware failure
//	    fail_write_at: 0           # optional injected persistence failure
//	    stop_at: 0                 # optional stop request after a cycle
//	  - action: resume
//	assertions:
//	  - type: dispatch_order
//	    models: [0, 1, 0]
//	  - type: step_outcome
//	    step: 1
//	    state: faulted
//	    code: DISPATCH_FAILURE
//
// The routine path is relative to the scenario file.
//
// # Assertion Types
//
//   - dispatch_order: the model index of every accepted dispatch, in order
//   - dispatch_count: the number of dispatches, optionally of one model
//   - step_outcome: engine state, stop reason or fault code after a step
//   - final_counters: counters of one model after the last step
//   - global_counter: the global counter after the last step
//   - routine_array: the routine array after the last step
//   - run_state: the persisted state of the latest run
//   - record_count: persisted next-model records of the latest run
//   - reported: a fault code reached the error reporter
//
// # Golden Files
//
// RunWithGolden compares the cycle trace with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
