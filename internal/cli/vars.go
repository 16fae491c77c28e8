package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/labroutine/internal/binding"
	"github.com/roach88/labroutine/internal/engine"
	"github.com/roach88/labroutine/internal/script"
)

// VarsOptions holds flags for the vars command.
type VarsOptions struct {
	*RootOptions
	Functions bool
	Steps     bool
}

// VariableInfo describes one built-in script variable.
type VariableInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Access  string `json:"access"`
	Remarks string `json:"remarks"`
}

// Reference is the script reference printed by the vars command.
type Reference struct {
	Variables []VariableInfo `json:"variables"`
	Functions []string       `json:"functions,omitempty"`
	Steps     []string       `json:"steps,omitempty"`
}

// String renders the reference for text output.
func (r Reference) String() string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tACCESS\tREMARKS")
	for _, v := range r.Variables {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Type, v.Access, v.Remarks)
	}
	_ = tw.Flush()

	if len(r.Functions) > 0 {
		b.WriteString("\nFunctions:\n")
		for _, f := range r.Functions {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	}
	if len(r.Steps) > 0 {
		b.WriteString("\nEach cycle:\n")
		for i, s := range r.Steps {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewVarsCommand creates the vars command.
func NewVarsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VarsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vars",
		Short: "List the variables available to scripts",
		Long: `List the built-in variables scripts can read and write, with their
types and access. Any other variable a script assigns is a local that
persists across cycles of a run.

Example:
  labroutine vars
  labroutine vars --functions --steps`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return formatter.Success(buildReference(opts))
		},
	}

	cmd.Flags().BoolVar(&opts.Functions, "functions", false, "also list script functions")
	cmd.Flags().BoolVar(&opts.Steps, "steps", false, "also describe what one cycle does")

	return cmd
}

func buildReference(opts *VarsOptions) Reference {
	contract := binding.Contract()
	ref := Reference{Variables: make([]VariableInfo, len(contract))}
	for i, v := range contract {
		ref.Variables[i] = VariableInfo{
			Name:    v.Name,
			Type:    v.Type.String(),
			Access:  v.Access.String(),
			Remarks: v.Remarks,
		}
	}
	if opts.Functions {
		ref.Functions = script.FunctionSignatures()
	}
	if opts.Steps {
		ref.Steps = engine.Steps()
	}
	return ref
}
