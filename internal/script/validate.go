package script

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// ErrEmptyRepetitive is the message for a routine without a repetitive script.
const ErrEmptyRepetitive = "a repetitive script is required"

// Validator statically checks scripts against a variable contract.
// It never evaluates anything and holds no mutable state, so it is safe
// for concurrent use and validating the same text always gives the same
// result.
type Validator struct {
	vars      map[string]VariableSpec
	functions map[string]bool
	filename  string
}

// NewValidator returns a validator for scripts that see the given built-in
// variables. Function names are those the HCL evaluator provides.
func NewValidator(contract []VariableSpec) *Validator {
	v := &Validator{
		vars:      make(map[string]VariableSpec, len(contract)),
		functions: make(map[string]bool),
		filename:  "script",
	}
	for _, decl := range contract {
		v.vars[decl.Name] = decl
	}
	for _, name := range FunctionNames() {
		v.functions[name] = true
	}
	return v
}

// Check validates an initialization/repetitive script pair as the engine
// runs it on the first cycle: the two texts joined by a newline. An empty
// repetitive script is rejected.
func (v *Validator) Check(initialization, repetitive string) error {
	if strings.TrimSpace(repetitive) == "" {
		return &SyntaxError{Message: ErrEmptyRepetitive}
	}
	combined := repetitive
	if initialization != "" {
		combined = initialization + "\n" + repetitive
	}
	return v.Validate(combined)
}

// Validate parses src and checks every statement. It returns nil or a
// *SyntaxError describing the first problem.
func (v *Validator) Validate(src string) error {
	prog, err := Parse(src, v.filename)
	if err != nil {
		return err
	}

	defined := make(map[string]bool, len(v.vars))
	for name := range v.vars {
		defined[name] = true
	}

	for _, st := range prog.statements {
		if st.index != nil {
			if err := v.checkExpr(st.index, defined); err != nil {
				return err
			}
		}
		if err := v.checkExpr(st.value, defined); err != nil {
			return err
		}
		if err := v.checkTarget(st, defined); err != nil {
			return err
		}
		defined[st.target] = true
	}
	return nil
}

// checkTarget verifies that the statement may write its target.
func (v *Validator) checkTarget(st statement, defined map[string]bool) error {
	decl, builtin := v.vars[st.target]
	if builtin && !decl.Writable() {
		return syntaxErrorAt(st.targetRange, "%q is read-only", st.target)
	}
	if st.index == nil && st.op == opAssign {
		return nil
	}
	if !defined[st.target] {
		return syntaxErrorAt(st.targetRange, "undefined variable %q", st.target)
	}
	if builtin && st.index != nil && !decl.Type.IsArray() {
		return syntaxErrorAt(st.targetRange, "%q is not a list and cannot be indexed", st.target)
	}
	if builtin && st.op == opAppend && decl.Type != TypeInteger && !decl.Type.IsArray() {
		return syntaxErrorAt(st.targetRange, "'+=' is not supported for %q (%s)", st.target, decl.Type)
	}
	return nil
}

// checkExpr verifies variable references and function calls in expr.
func (v *Validator) checkExpr(expr hclsyntax.Expression, defined map[string]bool) error {
	for _, traversal := range expr.Variables() {
		root := traversal.RootName()
		if !defined[root] {
			return syntaxErrorAt(traversal.SourceRange(), "undefined variable %q", root)
		}
	}

	var unknown *SyntaxError
	hclsyntax.VisitAll(expr, func(node hclsyntax.Node) hcl.Diagnostics {
		call, ok := node.(*hclsyntax.FunctionCallExpr)
		if ok && unknown == nil && !v.functions[call.Name] {
			unknown = syntaxErrorAt(call.NameRange, "unknown function %q", call.Name)
		}
		return nil
	})
	if unknown != nil {
		return unknown
	}
	return nil
}
