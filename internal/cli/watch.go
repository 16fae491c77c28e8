package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labroutine/internal/report"
	"github.com/roach88/labroutine/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Routine  string
	Debounce time.Duration
	Once     bool
}

// WatchReport is the outcome of one revalidation.
type WatchReport struct {
	Valid   bool     `json:"valid"`
	Routine string   `json:"routine,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Files   []string `json:"files"`
	Errors  []string `json:"errors,omitempty"`
}

// String renders the report for text output.
func (r WatchReport) String() string {
	var b strings.Builder
	if r.Valid {
		fmt.Fprintf(&b, "%s Routine %s valid", markOK, r.Routine)
	} else {
		fmt.Fprintf(&b, "%s Routine invalid", markFail)
	}
	if len(r.Changed) > 0 {
		fmt.Fprintf(&b, " after changes to %s", strings.Join(r.Changed, ", "))
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s", e)
	}
	return b.String()
}

// newWatchReport builds the report of a result from the findings the
// watcher left in the collector.
func newWatchReport(res watch.Result, files []string, collector *report.Collector) WatchReport {
	rep := WatchReport{
		Valid:   res.OK(),
		Changed: res.Changed,
		Files:   files,
	}
	if res.Definition != nil {
		rep.Routine = res.Definition.Routine.Name
	}
	for _, e := range collector.ByCategory(report.CategoryScriptValidation) {
		rep.Errors = append(rep.Errors, e.Message)
	}
	return rep
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <routine.cue>",
		Short: "Revalidate a routine whenever its files change",
		Long: `Validate a routine, then watch the routine file and its script files
and validate again after every edit. Runs until interrupted.

Example:
  labroutine watch ./routines/calibration.cue
  labroutine watch ./routines/all.cue --routine drift --once`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Routine, "routine", "", "routine name when the file defines several")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "wait for edits to settle this long")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "validate once and exit")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if _, err := os.Stat(path); err != nil {
		return loadFailure(formatter, &LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("routine file not found: %s", path),
		})
	}

	collector := report.NewCollector(report.WithLogger(logger))
	defer collector.Close()

	var (
		mu sync.Mutex
		w  *watch.Watcher
	)
	// Runs on the watcher goroutine after w is assigned.
	show := func(res watch.Result) {
		mu.Lock()
		defer mu.Unlock()
		rep := newWatchReport(res, w.Files(), collector)
		if rep.Valid {
			_ = formatter.Success(rep)
			return
		}
		_ = formatter.Failure(rep, ErrCodeLoadFailed, strings.Join(rep.Errors, "; "))
	}

	w, err := watch.New(path, opts.Routine,
		watch.WithDebounce(opts.Debounce),
		watch.WithLogger(logger),
		watch.WithReporter(collector),
		watch.WithHandler(show),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer w.Stop()

	if opts.Once {
		if res := w.Check(); !res.OK() {
			return NewExitError(ExitFailure, "routine invalid")
		}
		return nil
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch routine", err)
	}
	logger.Info("watching routine", "files", len(w.Files()))

	<-ctx.Done()
	logger.Info("watch stopped")
	return nil
}
