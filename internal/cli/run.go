package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/labroutine/internal/engine"
	"github.com/roach88/labroutine/internal/report"
	"github.com/roach88/labroutine/internal/script"
	"github.com/roach88/labroutine/internal/store"
)

// RunOptions holds flags for the run and resume commands.
type RunOptions struct {
	*RootOptions
	Database      string
	Routine       string
	Cycles        int
	Seed          uint64
	MetricsAddr   string
	DispatchDelay time.Duration

	// Dispatcher overrides the simulator (for testing).
	Dispatcher engine.Dispatcher

	// RunIDs overrides the run id generator (for testing).
	// If nil, the engine uses UUIDv7 ids.
	RunIDs engine.RunIDGenerator
}

// RunSummary describes how a run ended.
type RunSummary struct {
	RunID         string   `json:"run_id,omitempty"`
	Routine       string   `json:"routine"`
	State         string   `json:"state"`
	StopReason    string   `json:"stop_reason,omitempty"`
	Cycle         int64    `json:"cycle"`
	GlobalCounter int64    `json:"global_counter"`
	CurrentModel  int      `json:"current_model"`
	Fault         string   `json:"fault,omitempty"`
	FaultCode     string   `json:"fault_code,omitempty"`
	Reported      []string `json:"reported,omitempty"`
}

// String renders the summary for text output.
func (s RunSummary) String() string {
	var b strings.Builder
	mark := markOK
	if s.Fault != "" {
		mark = markFail
	}
	fmt.Fprintf(&b, "%s Run %s of %s %s", mark, s.RunID, s.Routine, s.State)
	if s.StopReason != "" {
		fmt.Fprintf(&b, " (%s)", s.StopReason)
	}
	fmt.Fprintf(&b, "\n  cycle: %d\n  global counter: %d\n  current model: %d", s.Cycle, s.GlobalCounter, s.CurrentModel)
	if s.Fault != "" {
		fmt.Fprintf(&b, "\n  fault: %s", s.Fault)
	}
	for _, r := range s.Reported {
		fmt.Fprintf(&b, "\n  reported: %s", r)
	}
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <routine.cue>",
		Short: "Start a fresh run of a routine",
		Long: `Start a fresh run of a routine. Counters, the global counter and the
routine array are reset, the initialization script runs on the first
cycle, and every selected model is recorded in the database before it is
handed to the hardware. Without hardware attached, models are executed by
a simulator that logs them.

The run ends on Ctrl-C, after --cycles cycles, when stop_after_scan
applies, or on a fault.

Exit codes:
  0 - Run stopped cleanly
  1 - Run faulted
  2 - Command error (routine invalid, scripts rejected, etc.)

Example:
  labroutine run --db ./lab.db ./routines/calibration.cue
  labroutine run --db ./lab.db ./routines/all.cue --routine drift --cycles 50
  labroutine run --db ./lab.db ./routines/calibration.cue --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutine(opts, args[0], cmd, false)
		},
	}
	addRunFlags(cmd, opts)

	return cmd
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return newResumeCommand(&RunOptions{RootOptions: rootOpts})
}

func newResumeCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <routine.cue>",
		Short: "Resume the last unfinished run",
		Long: `Resume the most recent run in the database from its last committed
cycle. Counters, the global counter, the routine array and script
variables are restored; the initialization script does not run again.
A model that was recorded but never executed is executed first.

Runs that stopped cleanly cannot be resumed.

Example:
  labroutine resume --db ./lab.db ./routines/calibration.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutine(opts, args[0], cmd, true)
		},
	}
	addRunFlags(cmd, opts)

	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Routine, "routine", "", "routine name when the file defines several")
	cmd.Flags().IntVar(&opts.Cycles, "cycles", 0, "stop after this many cycles (0 = unlimited)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "override the routine's shuffle seed (a resumed run keeps its own)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.DispatchDelay, "dispatch-delay", 0, "simulated execution time of a model")
	_ = cmd.MarkFlagRequired("db")
}

func runRoutine(opts *RunOptions, path string, cmd *cobra.Command, resume bool) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if opts.Cycles < 0 {
		return NewExitError(ExitCommandError, "--cycles must be non-negative")
	}

	def, err := loadRoutine(path, opts.Routine)
	if err != nil {
		return loadFailure(formatter, err)
	}
	routine := def.Routine
	if cmd.Flags().Changed("seed") {
		routine.Seed = opts.Seed
	}
	logger.Info("routine loaded", "routine", routine.Name, "models", routine.NumModels(), "file", path)

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	collector := report.NewCollector(report.WithLogger(logger))
	defer collector.Close()

	reg := prometheus.NewRegistry()
	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxCycles(opts.Cycles),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithReporter(collector),
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = &simulator{logger: logger, delay: opts.DispatchDelay}
	}

	eng, err := engine.New(routine, script.NewHCLEvaluator(), st, dispatcher, engOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	if opts.MetricsAddr != "" {
		shutdown, err := serveMetrics(opts.MetricsAddr, reg, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer shutdown()
	}

	if resume {
		err = eng.Resume(ctx)
	} else {
		err = eng.Start(ctx)
	}
	return outputRun(formatter, eng.Status(), routine.Name, collector, err)
}

// outputRun prints the run summary and maps the outcome to an exit code.
// A run that never left Idle was refused and is a command error.
func outputRun(formatter *OutputFormatter, status engine.Status, routine string, collector *report.Collector, runErr error) error {
	summary := RunSummary{
		RunID:         status.RunID,
		Routine:       routine,
		State:         status.StateName,
		StopReason:    string(status.StopReason),
		Cycle:         status.Cycle,
		GlobalCounter: status.GlobalCounter,
		CurrentModel:  status.CurrentModel,
		Fault:         status.FaultMessage,
	}
	for _, e := range collector.Entries() {
		summary.Reported = append(summary.Reported, fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message))
	}

	if runErr == nil {
		return formatter.Success(summary)
	}

	var fault *engine.FaultError
	if errors.As(runErr, &fault) && status.State != engine.StateIdle {
		summary.FaultCode = string(fault.Code)
		_ = formatter.Failure(summary, string(fault.Code), fault.Message)
		return WrapExitError(ExitFailure, "run faulted", runErr)
	}

	code := ErrCodeGeneric
	if fault != nil {
		code = string(fault.Code)
	}
	_ = formatter.Error(code, runErr.Error(), nil)
	return WrapExitError(ExitCommandError, "run refused", runErr)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// Use command's context if available (for testing), otherwise create one.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after the current cycle", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// serveMetrics serves reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
