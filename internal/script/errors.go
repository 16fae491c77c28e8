package script

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// SyntaxError is returned by the validator for a script that must not run.
// Line and Column are 1-based; zero when no location is known.
type SyntaxError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return e.Message
}

// RuntimeError is returned by an evaluator when a script fails while
// running. Message is the evaluator's own description of the failure.
type RuntimeError struct {
	Message string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("script error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return "script error: " + e.Message
}

// IsSyntaxError returns true if err is or wraps a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsRuntimeError returns true if err is or wraps a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// syntaxErrorAt builds a SyntaxError located at rng.
func syntaxErrorAt(rng hcl.Range, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Line:    rng.Start.Line,
		Column:  rng.Start.Column,
	}
}

// runtimeErrorAt builds a RuntimeError located at rng.
func runtimeErrorAt(rng hcl.Range, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Line:    rng.Start.Line,
		Column:  rng.Start.Column,
	}
}

// firstError returns the first error diagnostic, or nil.
func firstError(diags hcl.Diagnostics) *hcl.Diagnostic {
	for _, d := range diags {
		if d.Severity == hcl.DiagError {
			return d
		}
	}
	return nil
}

// diagMessage joins a diagnostic's summary and detail.
func diagMessage(d *hcl.Diagnostic) string {
	if d.Detail == "" {
		return d.Summary
	}
	return d.Summary + ": " + d.Detail
}

// syntaxErrorFromDiags converts the first error diagnostic.
func syntaxErrorFromDiags(diags hcl.Diagnostics) *SyntaxError {
	d := firstError(diags)
	if d == nil {
		return nil
	}
	se := &SyntaxError{Message: diagMessage(d)}
	if d.Subject != nil {
		se.Line = d.Subject.Start.Line
		se.Column = d.Subject.Start.Column
	}
	return se
}

// runtimeErrorFromDiags converts the first error diagnostic.
func runtimeErrorFromDiags(diags hcl.Diagnostics) *RuntimeError {
	d := firstError(diags)
	if d == nil {
		return nil
	}
	re := &RuntimeError{Message: diagMessage(d)}
	if d.Subject != nil {
		re.Line = d.Subject.Start.Line
		re.Column = d.Subject.Start.Column
	}
	return re
}
