package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/labroutine/internal/binding"
	"github.com/roach88/labroutine/internal/counter"
	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/scan"
	"github.com/roach88/labroutine/internal/script"
)

// Engine runs a measurement routine.
//
// Thread-safety model:
//   - Start(), Resume(): block until the run ends; at most one at a time
//   - Stop(), Status(), Validate(): safe from any goroutine
//   - SetScripts(), ResetModel(): refused with ErrRunning during a run
//
// All counter, global counter and routine array mutations happen on the
// goroutine that called Start or Resume.
type Engine struct {
	routine    ir.Routine
	evaluator  script.Evaluator
	validator  *script.Validator
	gateway    Gateway
	dispatcher Dispatcher
	reporter   Reporter
	logger     *slog.Logger
	runIDs     RunIDGenerator
	metrics    *Metrics
	maxCycles  int

	counters *counter.Store
	shuffler *scan.Shuffler
	clock    *Clock

	// runMu is held for the whole of a run.
	runMu         sync.Mutex
	stopRequested atomic.Bool

	// mu guards the fields below, which Status reads.
	mu            sync.Mutex
	state         State
	phase         Phase
	runID         string
	cycle         int64
	currentMode   int
	previousMode  int
	routineArray  []float64
	locals        map[string]any
	stopReason    StopReason
	fault         *FaultError
	validatedHash string
	validationErr error

	// runInit is set until the first cycle of a fresh run commits.
	runInit bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxCycles limits the cycles one Start or Resume call executes.
// Reaching the limit stops the run cleanly. Default: 0 (unlimited).
func WithMaxCycles(n int) Option {
	return func(e *Engine) {
		e.maxCycles = n
	}
}

// WithMetrics sets the Prometheus collectors to update.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithReporter sets the service faults are reported to.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// New creates an idle engine for routine.
func New(
	routine ir.Routine,
	evaluator script.Evaluator,
	gateway Gateway,
	dispatcher Dispatcher,
	opts ...Option,
) (*Engine, error) {
	if routine.NumModels() == 0 {
		return nil, ErrNoModels
	}
	for i, m := range routine.Models {
		if m.Index != i {
			return nil, fmt.Errorf("model %q has index %d, want %d", m.Name, m.Index, i)
		}
	}

	e := &Engine{
		routine:    routine,
		evaluator:  evaluator,
		validator:  binding.NewValidator(),
		gateway:    gateway,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		runIDs:     UUIDv7Generator{},
		counters:   counter.New(routine.Models, counter.WithScanOnlyOnce(routine.ScanOnlyOnce)),
		shuffler:   scan.NewShuffler(routine.ShuffleIterations, routine.Seed),
		clock:      NewClock(),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Routine returns the routine the engine runs.
func (e *Engine) Routine() ir.Routine {
	return e.routine
}

// Validate checks the current script pair and remembers the outcome.
// A failed validation keeps the engine from starting until the scripts
// validate again. It never affects a run in progress.
func (e *Engine) Validate() error {
	scripts := e.routine.Scripts
	err := e.validator.Check(scripts.Initialization, scripts.Repetitive)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.validationErr = err
	if err != nil {
		e.validatedHash = ""
		return err
	}
	e.validatedHash = ir.ScriptHash(scripts.Combined())
	return nil
}

// LastValidation returns the hash of the last successfully validated
// script text and the error of the last validation.
func (e *Engine) LastValidation() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validatedHash, e.validationErr
}

// SetScripts replaces the script pair and validates it.
// The scripts are replaced even when validation fails.
func (e *Engine) SetScripts(s ir.Scripts) error {
	if !e.runMu.TryLock() {
		return ErrRunning
	}
	defer e.runMu.Unlock()

	e.routine.Scripts = s
	return e.Validate()
}

// ResetModel resets one model's counters.
func (e *Engine) ResetModel(index int) error {
	if !e.runMu.TryLock() {
		return ErrRunning
	}
	defer e.runMu.Unlock()

	if err := e.counters.Reset(index); err != nil {
		return err
	}
	e.logger.Info("model counters reset", "model", index)
	return nil
}

// preflight validates the scripts and checks that the validated text is
// the text about to run.
func (e *Engine) preflight() error {
	if err := e.Validate(); err != nil {
		return &FaultError{Code: ErrCodeScriptSyntax, Message: err.Error(), Err: err}
	}
	hash, _ := e.LastValidation()
	if hash != ir.ScriptHash(e.routine.Scripts.Combined()) {
		return &FaultError{Code: ErrCodeScriptSyntax, Message: "scripts changed since validation"}
	}
	return nil
}

// Start begins a fresh run and blocks until it stops or faults.
//
// Counters, the global counter, the routine array and script locals are
// reset. The initialization script runs on the first cycle only. Returns
// nil when the run stopped cleanly and a *FaultError when it faulted or
// the scripts failed validation.
func (e *Engine) Start(ctx context.Context) error {
	if !e.runMu.TryLock() {
		return ErrRunning
	}
	defer e.runMu.Unlock()

	e.stopRequested.Store(false)
	if err := e.preflight(); err != nil {
		e.logger.Warn("start refused", "error", err)
		return err
	}

	runID := e.runIDs.Generate()
	e.counters.ResetAll()
	e.clock.Set(0)
	e.shuffler = scan.NewShuffler(e.routine.ShuffleIterations, e.routine.Seed)
	e.runInit = true

	e.mu.Lock()
	e.runID = runID
	e.cycle = 0
	e.currentMode = ir.PrimaryModelIndex
	e.previousMode = ir.PrimaryModelIndex
	e.routineArray = []float64{}
	e.locals = nil
	e.enterRunningLocked()
	e.mu.Unlock()

	e.logger.Info("routine starting",
		"run_id", runID,
		"routine", e.routine.Name,
		"models", e.routine.NumModels(),
		"shuffle", e.routine.ShuffleIterations,
	)

	run := ir.Run{
		ID:          runID,
		RoutineName: e.routine.Name,
		ScriptHash:  ir.ScriptHash(e.routine.Scripts.Combined()),
		Shuffle:     e.routine.ShuffleIterations,
		Seed:        e.routine.Seed,
		State:       ir.RunStateRunning,
	}
	if err := e.gateway.BeginRun(ctx, run); err != nil {
		return e.fail(ctx, newFault(ErrCodePersistence, runID, 0, fmt.Errorf("begin run: %w", err)))
	}
	return e.loop(ctx)
}

// Resume continues the most recent unfinished run from its last committed
// cycle and blocks until it stops or faults.
//
// The initialization script does not run again. If the last committed
// model was never handed to the hardware it is dispatched first. Scans
// continue in the order fixed by the run's own shuffle seed; a run whose
// scripts or shuffle setting changed since it began is refused.
func (e *Engine) Resume(ctx context.Context) error {
	if !e.runMu.TryLock() {
		return ErrRunning
	}
	defer e.runMu.Unlock()

	e.stopRequested.Store(false)
	if err := e.preflight(); err != nil {
		e.logger.Warn("resume refused", "error", err)
		return err
	}

	run, ok, err := e.gateway.LatestRun(ctx)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if !ok {
		return ErrNothingToResume
	}
	if run.State == ir.RunStateStopped {
		return fmt.Errorf("%w: %s", ErrRunFinished, run.ID)
	}
	if run.RoutineName != e.routine.Name {
		return fmt.Errorf("%w: run %s belongs to %q", ErrRoutineMismatch, run.ID, run.RoutineName)
	}
	if run.ScriptHash != ir.ScriptHash(e.routine.Scripts.Combined()) {
		return fmt.Errorf("%w: run %s", ErrScriptsChanged, run.ID)
	}
	if run.Shuffle != e.routine.ShuffleIterations {
		return fmt.Errorf("%w: run %s has shuffle_iterations %t", ErrRoutineMismatch, run.ID, run.Shuffle)
	}
	if run.Shuffle && run.Seed != e.routine.Seed {
		e.logger.Warn("resuming with the seed of the run",
			"run_id", run.ID,
			"seed", run.Seed,
			"ignored_seed", e.routine.Seed,
		)
	}

	rec, found, err := e.gateway.LatestRecord(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("resume run %s: %w", run.ID, err)
	}

	e.counters.ResetAll()
	e.clock.Set(0)
	e.shuffler = scan.NewShuffler(run.Shuffle, run.Seed)
	e.runInit = true
	state := runState{current: ir.PrimaryModelIndex, previous: ir.PrimaryModelIndex, array: []float64{}}
	if found {
		if err := e.counters.Restore(rec.Counters); err != nil {
			return fmt.Errorf("resume run %s: %w", run.ID, err)
		}
		if !e.routine.HasModel(rec.ModelIndex) {
			return fmt.Errorf("resume run %s: record selects unknown model %d", run.ID, rec.ModelIndex)
		}
		e.clock.Set(rec.GlobalCounter)
		e.runInit = false
		state = runState{
			cycle:    rec.Cycle,
			current:  rec.ModelIndex,
			previous: rec.PreviousModel,
			array:    slices.Clone(rec.RoutineArray),
			locals:   maps.Clone(rec.Locals),
		}
		if state.array == nil {
			state.array = []float64{}
		}
	}

	e.mu.Lock()
	e.runID = run.ID
	e.cycle = state.cycle
	e.currentMode = state.current
	e.previousMode = state.previous
	e.routineArray = state.array
	e.locals = state.locals
	e.enterRunningLocked()
	e.mu.Unlock()

	e.logger.Info("routine resuming",
		"run_id", run.ID,
		"routine", e.routine.Name,
		"cycle", state.cycle,
		"model", state.current,
		"global_counter", e.clock.Current(),
		"redispatch", found && !rec.Dispatched,
	)

	run.State = ir.RunStateRunning
	run.Fault = ""
	if err := e.gateway.BeginRun(ctx, run); err != nil {
		return e.fail(ctx, newFault(ErrCodePersistence, run.ID, state.cycle, fmt.Errorf("begin run: %w", err)))
	}

	if found && !rec.Dispatched {
		e.setPhase(PhaseDispatching)
		if f := e.dispatch(ctx, rec); f != nil {
			return e.fail(ctx, f)
		}
		if e.scanStop(rec.ModelIndex, rec.ScanCompleted) {
			return e.finish(ctx, StopScanComplete)
		}
	}
	return e.loop(ctx)
}

type runState struct {
	cycle    int64
	current  int
	previous int
	array    []float64
	locals   map[string]any
}

// enterRunningLocked moves to Running. e.mu must be held.
func (e *Engine) enterRunningLocked() {
	e.state = StateRunning
	e.phase = PhaseNone
	e.stopReason = ""
	e.fault = nil
	e.metrics.setRunning(true)
}



// Stop asks the run to stop after the current cycle. An idle or faulted
// engine moves straight to Stopped; the last fault stays in Status and the
// persisted run stays faulted, so it can still be resumed. Safe from any
// goroutine.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)

	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateIdle:
		e.state = StateStopped
		e.stopReason = StopBeforeRunning
	case StateFaulted:
		e.state = StateStopped
		e.stopReason = StopRequested
	}
}

// Status returns a snapshot of the engine. Safe from any goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		State:         e.state,
		StateName:     e.state.String(),
		Phase:         e.phase.String(),
		RunID:         e.runID,
		Cycle:         e.cycle,
		GlobalCounter: e.clock.Current(),
		CurrentModel:  e.currentMode,
		PreviousModel: e.previousMode,
		Counters:      e.counters.Snapshot(),
		RoutineArray:  slices.Clone(e.routineArray),
		StopReason:    e.stopReason,
		Fault:         e.fault,
		Locals:        maps.Clone(e.locals),
	}
	if e.fault != nil {
		s.FaultMessage = e.fault.Error()
	}
	return s
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}
