package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/labroutine/internal/binding"
	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/report"
	"github.com/roach88/labroutine/internal/scan"
)

// loop runs cycles until the run stops or faults.
// CRITICAL: Called only with runMu held.
func (e *Engine) loop(ctx context.Context) error {
	quota := NewCycleQuota(e.maxCycles)
	for {
		if reason, stop := e.shouldStop(ctx, quota); stop {
			return e.finish(ctx, reason)
		}

		completed, fault := e.runCycle(ctx)
		if fault != nil {
			return e.fail(ctx, fault)
		}
		quota.Spend()

		e.mu.Lock()
		current := e.currentMode
		e.mu.Unlock()
		if e.scanStop(current, completed) {
			return e.finish(ctx, StopScanComplete)
		}
	}
}

// shouldStop is checked between cycles, the only point where a run stops.
func (e *Engine) shouldStop(ctx context.Context, quota *CycleQuota) (StopReason, bool) {
	if e.stopRequested.Load() {
		return StopRequested, true
	}
	if ctx.Err() != nil {
		return StopContextDone, true
	}
	if err := quota.Check(e.runID); err != nil {
		e.logger.Debug("cycle limit reached", "error", err)
		return StopCycleLimit, true
	}
	return "", false
}

// scanStop reports whether stop-after-scan ends the run now that model
// ran. completed is whether that cycle completed a scan.
func (e *Engine) scanStop(model int, completed bool) bool {
	if !e.routine.StopAfterScan || !completed {
		return false
	}
	c, err := e.counters.Get(model)
	if err != nil {
		return false
	}
	return c.CompletedScans >= e.routine.EffectiveScanCount()
}

// cycleSnapshot is the state a failed cycle rolls back to. The routine
// array and locals are only replaced after a successful commit, so they
// need no copy.
type cycleSnapshot struct {
	counters []ir.Counters
	global   int64
}

func (e *Engine) rollback(snap cycleSnapshot) {
	if err := e.counters.Restore(snap.counters); err != nil {
		e.logger.Error("rollback failed", "error", err)
	}
	e.clock.Set(snap.global)
}

// runCycle runs one cycle: Preparing, Evaluating, Selecting, Committing
// and Dispatching. It returns whether the cycle completed a scan of the
// selected model.
func (e *Engine) runCycle(ctx context.Context) (bool, *FaultError) {
	start := time.Now()

	e.mu.Lock()
	runID := e.runID
	cycle := e.cycle + 1
	current := e.currentMode
	previous := e.previousMode
	array := e.routineArray
	locals := e.locals
	e.mu.Unlock()

	// The running cycle is never interrupted; ctx only decides whether the
	// next one starts.
	cycleCtx := context.WithoutCancel(ctx)

	// Preparing
	e.setPhase(PhasePreparing)
	snap := cycleSnapshot{counters: e.counters.Snapshot(), global: e.clock.Current()}
	if err := e.counters.BeginScanSet(current, snap.global); err != nil {
		return false, newFault(ErrCodeInvalidModelSelection, runID, cycle, err)
	}
	counters, _ := e.counters.Get(current)
	size, _ := e.counters.ScanSize(current)
	bindings := binding.Build(binding.State{
		Routine:        e.routine,
		CurrentMode:    current,
		PreviousMode:   previous,
		StartOfRoutine: e.runInit,
		GlobalCounter:  snap.global,
		Counters:       counters,
		ScanSize:       size,
		RoutineArray:   array,
		Locals:         locals,
	})

	// Evaluating
	e.setPhase(PhaseEvaluating)
	src := e.routine.Scripts.Repetitive
	if e.runInit {
		src = e.routine.Scripts.Combined()
	}
	out, err := e.evaluator.Evaluate(cycleCtx, src, bindings)
	if err != nil {
		e.rollback(snap)
		return false, newFault(ErrCodeScriptRuntime, runID, cycle, err)
	}

	// Selecting
	e.setPhase(PhaseSelecting)
	result, err := binding.ReadBack(out)
	if err != nil {
		e.rollback(snap)
		if binding.IsSelectionError(err) {
			return false, newFault(ErrCodeInvalidModelSelection, runID, cycle, err)
		}
		return false, newFault(ErrCodeScriptRuntime, runID, cycle, err)
	}
	next, err := binding.Resolve(result.Mode, e.routine)
	if err != nil {
		e.rollback(snap)
		return false, newFault(ErrCodeInvalidModelSelection, runID, cycle, err)
	}
	e.metrics.observeSelection(next, selectionKind(result.Mode))

	// Committing
	e.setPhase(PhaseCommitting)
	global := e.clock.Next()
	iteration, combination := e.takeIteration(next)
	completed, err := e.counters.AdvanceIteration(next)
	if err != nil {
		e.rollback(snap)
		return false, newFault(ErrCodeInvalidModelSelection, runID, cycle, err)
	}

	rec := ir.NextModelRecord{
		RunID:         runID,
		Cycle:         cycle,
		ModelIndex:    next,
		PreviousModel: current,
		Iteration:     iteration,
		Combination:   combination,
		ScanCompleted: completed,
		GlobalCounter: global,
		Counters:      e.counters.Snapshot(),
		RoutineArray:  result.RoutineArray,
		Locals:        result.Locals,
	}
	if err := e.gateway.WriteNextModel(cycleCtx, rec); err != nil {
		e.rollback(snap)
		return false, newFault(ErrCodePersistence, runID, cycle, err)
	}

	e.mu.Lock()
	e.cycle = cycle
	e.previousMode = current
	e.currentMode = next
	e.routineArray = result.RoutineArray
	e.locals = result.Locals
	e.mu.Unlock()
	e.runInit = false

	e.logger.Info("cycle committed",
		"run_id", runID,
		"cycle", cycle,
		"model", next,
		"previous_model", current,
		"iteration", iteration,
		"combination", combination,
		"global_counter", global,
		"scan_completed", completed,
	)

	// Dispatching
	e.setPhase(PhaseDispatching)
	if fault := e.dispatch(ctx, rec); fault != nil {
		return false, fault
	}
	e.setPhase(PhaseNone)

	e.metrics.observeCycle(global, time.Since(start).Seconds())
	if completed {
		e.metrics.observeScanCompleted(next)
	}
	return completed, nil
}

// takeIteration returns the iteration and combination the model runs
// with this cycle. It must be called before the model's counters advance.
func (e *Engine) takeIteration(model int) (iteration, combination int) {
	c, _ := e.counters.Get(model)
	size, _ := e.counters.ScanSize(model)

	switch {
	case size == 0:
		return 0, ir.NotIterating
	case e.counters.IsAdvancing(model):
		order := e.shuffler.Order(model, c.CompletedScans, size)
		return c.IterationOfScan, order.At(c.IterationOfScan - 1)
	default:
		// Scanned once already: hold the last combination of the first scan.
		order := e.shuffler.Order(model, 0, size)
		return size, order.At(size - 1)
	}
}

// dispatch hands a committed record's model to the hardware and marks the
// record dispatched.
func (e *Engine) dispatch(ctx context.Context, rec ir.NextModelRecord) *FaultError {
	dispatchCtx := context.WithoutCancel(ctx)
	model := e.routine.Models[rec.ModelIndex]

	var values map[string]float64
	if rec.Combination != ir.NotIterating {
		v, err := scan.Combination(model.Iterators, rec.Combination)
		if err != nil {
			return newFault(ErrCodeDispatch, rec.RunID, rec.Cycle, err)
		}
		values = v
	}

	d := ir.Dispatch{
		RunID:       rec.RunID,
		Cycle:       rec.Cycle,
		Model:       model,
		Iteration:   rec.Iteration,
		Combination: rec.Combination,
		Values:      values,
	}
	if err := e.dispatcher.Dispatch(dispatchCtx, d); err != nil {
		return newFault(ErrCodeDispatch, rec.RunID, rec.Cycle, fmt.Errorf("dispatch model %d: %w", rec.ModelIndex, err))
	}
	if err := e.gateway.MarkDispatched(dispatchCtx, rec.RunID, rec.Cycle); err != nil {
		return newFault(ErrCodePersistence, rec.RunID, rec.Cycle, fmt.Errorf("mark dispatched: %w", err))
	}
	return nil
}

// finish ends the run cleanly.
func (e *Engine) finish(ctx context.Context, reason StopReason) error {
	e.mu.Lock()
	e.state = StateStopped
	e.phase = PhaseNone
	e.stopReason = reason
	runID := e.runID
	cycle := e.cycle
	e.mu.Unlock()
	e.metrics.setRunning(false)

	e.logger.Info("routine stopped",
		"run_id", runID,
		"cycle", cycle,
		"global_counter", e.clock.Current(),
		"reason", string(reason),
	)

	if err := e.gateway.FinishRun(context.WithoutCancel(ctx), runID, ir.RunStateStopped, ""); err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// fail ends the run with a fault and reports it.
func (e *Engine) fail(ctx context.Context, f *FaultError) error {
	e.mu.Lock()
	e.state = StateFaulted
	e.phase = PhaseNone
	e.fault = f
	e.mu.Unlock()
	e.metrics.setRunning(false)
	e.metrics.observeFault(f.Code)

	e.logger.Error("routine faulted",
		"run_id", f.RunID,
		"cycle", f.Cycle,
		"code", string(f.Code),
		"error", f.Message,
	)

	if e.reporter != nil {
		e.reporter.Report(report.Entry{
			Category: report.CategoryMeasurementRoutine,
			Code:     string(f.Code),
			Message:  f.Message,
			RunID:    f.RunID,
			Cycle:    f.Cycle,
		})
	}

	if f.RunID != "" {
		if err := e.gateway.FinishRun(context.WithoutCancel(ctx), f.RunID, ir.RunStateFaulted, f.Error()); err != nil {
			e.logger.Error("failed to record fault",
				"run_id", f.RunID,
				"error", err,
			)
		}
	}
	return f
}

func selectionKind(sel binding.ModeSelection) string {
	if _, ok := sel.(binding.RawLabel); ok {
		return "label"
	}
	return "index"
}
