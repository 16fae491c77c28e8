package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/labroutine/internal/compiler"
	"github.com/roach88/labroutine/internal/engine"
	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/report"
	"github.com/roach88/labroutine/internal/script"
	"github.com/roach88/labroutine/internal/store"
	"github.com/roach88/labroutine/internal/testutil"
)

// DefaultCycleLimit bounds a step that sets no cycle limit, so a routine
// that never stops on its own fails its assertions instead of hanging.
const DefaultCycleLimit = 1000

var errInjected = errors.New("injected failure")

// Harness is the test execution engine.
// It runs the steps of one scenario over a shared in-memory database.
type Harness struct {
	routine   ir.Routine
	evaluator script.Evaluator
	gateway   *faultyStore
	runIDs    engine.RunIDGenerator
	reports   *report.Collector
	logger    *slog.Logger

	result *Result
	last   engine.Status
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. Run ids
// are "run-1", "run-2", ... in the order steps start runs.
//
// Execution flow:
// 1. Load and validate the routine
// 2. Run every step with a new engine, tracing dispatches and step ends
// 3. Read the final state back from the database
// 4. Evaluate assertions
//
// Returns an error only when the scenario could not be executed; failed
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	def, err := compiler.LoadRoutine(scenario.Routine, scenario.RoutineName)
	if err != nil {
		return nil, fmt.Errorf("failed to load routine: %w", err)
	}
	if problems := compiler.Validate(&def.Routine); len(problems) > 0 {
		return nil, fmt.Errorf("invalid routine: %w", problems[0])
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		routine:   def.Routine,
		evaluator: evaluatorFor(scenario),
		gateway:   &faultyStore{Store: st},
		runIDs:    testutil.NewSequentialRunIDs("run"),
		reports:   report.NewCollector(report.WithLogger(logger)),
		logger:    logger,
		result:    NewResult(),
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i+1, step); err != nil {
			return nil, err
		}
	}

	if err := h.collectFinal(ctx, st); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// evaluatorFor returns the evaluator of a scenario: the HCL evaluator, or
// a fixed mode sequence when the scenario lists modes.
func evaluatorFor(scenario *Scenario) script.Evaluator {
	if len(scenario.Modes) > 0 {
		return testutil.ModeSequence(scenario.Modes...)
	}
	return script.NewHCLEvaluator()
}

// runStep runs one step with a new engine and appends its end event.
func (h *Harness) runStep(ctx context.Context, n int, step Step) error {
	h.gateway.failWriteAt = step.FailWriteAt

	limit := step.Cycles
	if limit == 0 {
		limit = DefaultCycleLimit
	}

	d := &traceDispatcher{step: n, failAt: step.FailDispatchAt, stopAt: step.StopAt, result: h.result}
	eng, err := engine.New(h.routine, h.evaluator, h.gateway, d,
		engine.WithLogger(h.logger),
		engine.WithMaxCycles(limit),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithReporter(h.reports),
	)
	if err != nil {
		return fmt.Errorf("step %d: %w", n, err)
	}
	d.stop = eng.Stop

	var runErr error
	switch step.Action {
	case ActionStart:
		runErr = eng.Start(ctx)
	case ActionResume:
		runErr = eng.Resume(ctx)
	default:
		return fmt.Errorf("step %d: unknown action %q", n, step.Action)
	}

	status := eng.Status()
	end := TraceEvent{
		Type:          EventEnd,
		Step:          n,
		State:         status.StateName,
		Reason:        string(status.StopReason),
		GlobalCounter: status.GlobalCounter,
		Counters:      status.Counters,
	}
	var fault *engine.FaultError
	switch {
	case errors.As(runErr, &fault):
		end.Code = string(fault.Code)
	case runErr != nil:
		end.Error = runErr.Error()
	}
	h.result.Trace = append(h.result.Trace, end)
	h.last = status

	h.logger.Debug("step finished",
		"step", n,
		"action", step.Action,
		"state", status.StateName,
		"error", runErr,
	)
	return nil
}

// collectFinal reads the final state from the last engine and the store.
func (h *Harness) collectFinal(ctx context.Context, st *store.Store) error {
	final := FinalState{
		GlobalCounter: h.last.GlobalCounter,
		Counters:      h.last.Counters,
		RoutineArray:  h.last.RoutineArray,
	}

	run, ok, err := st.LatestRun(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest run: %w", err)
	}
	if ok {
		records, err := st.ReadRecords(ctx, run.ID)
		if err != nil {
			return fmt.Errorf("failed to read records of %s: %w", run.ID, err)
		}
		final.RunID = run.ID
		final.RunState = run.State
		final.Records = len(records)
	}

	for _, entry := range h.reports.Entries() {
		final.Reported = append(final.Reported, entry.Code)
	}

	h.result.Final = final
	return nil
}

// faultyStore fails the next-model write of one cycle.
type faultyStore struct {
	*store.Store
	failWriteAt int64
}

// WriteNextModel implements engine.Gateway.
func (s *faultyStore) WriteNextModel(ctx context.Context, rec ir.NextModelRecord) error {
	if s.failWriteAt != 0 && rec.Cycle == s.failWriteAt {
		return errInjected
	}
	return s.Store.WriteNextModel(ctx, rec)
}

// traceDispatcher accepts models into the trace. It runs on the engine's
// run goroutine.
type traceDispatcher struct {
	step   int
	failAt int64
	stopAt int64
	stop   func()
	result *Result
}

// Dispatch implements engine.Dispatcher.
func (d *traceDispatcher) Dispatch(_ context.Context, dispatch ir.Dispatch) error {
	if d.failAt != 0 && dispatch.Cycle == d.failAt {
		return errInjected
	}
	d.result.Trace = append(d.result.Trace, TraceEvent{
		Type:        EventDispatch,
		Step:        d.step,
		Cycle:       dispatch.Cycle,
		Model:       dispatch.Model.Index,
		Iteration:   dispatch.Iteration,
		Combination: dispatch.Combination,
		Values:      dispatch.Values,
	})
	if d.stopAt != 0 && dispatch.Cycle == d.stopAt && d.stop != nil {
		d.stop()
	}
	return nil
}
