package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunList lists the runs of a database.
type RunList struct {
	Runs []ir.Run `json:"runs"`
}

// String renders the list for text output.
func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	for i, r := range l.Runs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %-8s %s", r.ID, r.State, r.RoutineName)
		if r.Fault != "" {
			fmt.Fprintf(&b, "  (%s)", r.Fault)
		}
	}
	return b.String()
}

// RunDetail is one run and its committed cycles.
type RunDetail struct {
	Run     ir.Run               `json:"run"`
	Records []ir.NextModelRecord `json:"records"`
}

// String renders the run for text output.
func (d RunDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n  routine: %s\n  state: %s\n  script hash: %s",
		d.Run.ID, d.Run.RoutineName, d.Run.State, d.Run.ScriptHash)
	if d.Run.Fault != "" {
		fmt.Fprintf(&b, "\n  fault: %s", d.Run.Fault)
	}
	fmt.Fprintf(&b, "\n  cycles: %d", len(d.Records))
	for _, rec := range d.Records {
		fmt.Fprintf(&b, "\n  %4d  model %d", rec.Cycle, rec.ModelIndex)
		if rec.Iteration > 0 {
			fmt.Fprintf(&b, "  iteration %d", rec.Iteration)
		}
		fmt.Fprintf(&b, "  global %d", rec.GlobalCounter)
		if rec.ScanCompleted {
			b.WriteString("  scan completed")
		}
		if !rec.Dispatched {
			b.WriteString("  not executed")
		}
	}
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded runs",
		Long: `List the runs recorded in a database, latest first, or show one run
with every committed cycle.

Example:
  labroutine status --db ./lab.db
  labroutine status --db ./lab.db --run 0190a5c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run with its records")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Opening would create a missing database.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		msg := fmt.Sprintf("database not found: %s", opts.Database)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list runs", err)
		}
		return formatter.Success(RunList{Runs: runs})
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		msg := fmt.Sprintf("run not found: %s", opts.RunID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read run", err)
	}
	records, err := st.ReadRecords(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read records", err)
	}
	return formatter.Success(RunDetail{Run: run, Records: records})
}
