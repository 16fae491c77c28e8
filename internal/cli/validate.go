package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labroutine/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Routine string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Routine string                     `json:"routine,omitempty"`
	Models  int                        `json:"models,omitempty"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// String renders the result for text output.
func (r ValidationResult) String() string {
	if r.Valid {
		return fmt.Sprintf("%s Routine %s valid (%d model(s))", markOK, r.Routine, r.Models)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s Validation failed\n", markFail)
	for _, e := range r.Errors {
		b.WriteString("\n")
		if e.Line > 0 {
			fmt.Fprintf(&b, "line %d\n", e.Line)
		}
		fmt.Fprintf(&b, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <routine.cue>",
		Short: "Validate a routine and its scripts",
		Long: `Compile a routine and check its models, iterators and options, then
validate the initialization and repetitive scripts against the built-in
variable contract. Nothing is executed.

Exit codes:
  0 - Routine valid
  1 - Validation failed
  2 - Routine could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Routine, "routine", "", "routine name when the file defines several")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	def, err := loadRoutine(path, opts.Routine)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Loaded routine %s from %s", def.Routine.Name, path)
	for role, file := range def.ScriptFiles {
		formatter.VerboseLog("  %s script: %s", role, file)
	}

	result := ValidationResult{
		Routine: def.Routine.Name,
		Models:  def.Routine.NumModels(),
		Errors:  compiler.Validate(&def.Routine),
	}
	if len(result.Errors) > 0 {
		_ = formatter.Failure(result, result.Errors[0].Code, result.Errors[0].Message)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	result.Valid = true
	return formatter.Success(result)
}
