package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/labroutine/internal/binding"
	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/script"
)

// Validation error codes (E100-E199)
const (
	// Model errors (E101-E109)
	ErrNoModels          = "E101" // at least one model required
	ErrModelNameEmpty    = "E102" // model name is required
	ErrModelPathEmpty    = "E103" // model path is required
	ErrDuplicateModel    = "E104" // duplicate model name or path
	ErrNumericModelName  = "E105" // name would be read as an index
	ErrIteratorNoValues  = "E106" // iterator has no values
	ErrDuplicateIterator = "E107" // duplicate iterator name within a model
	ErrIteratorName      = "E108" // iterator name clashes with a routine variable

	// Routine option errors (E110-E119)
	ErrInvalidScanCount = "E110" // scan_count must be at least 1

	// Script errors (E120-E129)
	ErrScriptInvalid = "E120" // script pair fails validation
)

// ValidationError represents a routine validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled routine.
// Returns all errors found (does not fail-fast).
func Validate(r *ir.Routine) []ValidationError {
	var errs []ValidationError

	// E101: at least one model required
	if len(r.Models) == 0 {
		errs = append(errs, ValidationError{
			Field:   "models",
			Message: "at least one model is required",
			Code:    ErrNoModels,
		})
	}

	names := make(map[string]bool)
	paths := make(map[string]bool)
	for i, m := range r.Models {
		errs = append(errs, validateModel(i, m, names, paths)...)
	}

	// E110: scan_count
	if r.ScanCount < 0 {
		errs = append(errs, ValidationError{
			Field:   "scan_count",
			Message: fmt.Sprintf("scan_count must be at least 1, got %d", r.ScanCount),
			Code:    ErrInvalidScanCount,
		})
	}

	// E120: scripts
	if err := binding.NewValidator().Check(r.Scripts.Initialization, r.Scripts.Repetitive); err != nil {
		ve := ValidationError{
			Field:   "scripts",
			Message: err.Error(),
			Code:    ErrScriptInvalid,
		}
		var se *script.SyntaxError
		if errors.As(err, &se) {
			ve.Message = se.Message
			ve.Line = se.Line
		}
		errs = append(errs, ve)
	}

	return errs
}

func validateModel(i int, m ir.Model, names, paths map[string]bool) []ValidationError {
	var errs []ValidationError
	field := fmt.Sprintf("models[%d]", i)

	// E102: name required
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: "model name is required",
			Code:    ErrModelNameEmpty,
		})
	}

	// E103: path required
	if strings.TrimSpace(m.Path) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".path",
			Message: "model path is required",
			Code:    ErrModelPathEmpty,
		})
	}

	// E104: duplicates. Names select models case-insensitively.
	key := strings.ToLower(m.Name)
	if m.Name != "" && names[key] {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("duplicate model name: %q", m.Name),
			Code:    ErrDuplicateModel,
		})
	}
	names[key] = true
	if m.Path != "" && paths[m.Path] {
		errs = append(errs, ValidationError{
			Field:   field + ".path",
			Message: fmt.Sprintf("duplicate model path: %q", m.Path),
			Code:    ErrDuplicateModel,
		})
	}
	paths[m.Path] = true

	// E105: a numeric name could never be selected by name
	if _, err := strconv.Atoi(strings.TrimSpace(m.Name)); err == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("model name %q is a number and would select a model by index", m.Name),
			Code:    ErrNumericModelName,
		})
	}

	iterators := make(map[string]bool)
	for j, it := range m.Iterators {
		itField := fmt.Sprintf("%s.iterators[%d]", field, j)

		// E106: values required
		if len(it.Values) == 0 {
			errs = append(errs, ValidationError{
				Field:   itField,
				Message: fmt.Sprintf("iterator %q has no values", it.Name),
				Code:    ErrIteratorNoValues,
			})
		}

		// E107: duplicate iterator
		if iterators[it.Name] {
			errs = append(errs, ValidationError{
				Field:   itField + ".name",
				Message: fmt.Sprintf("duplicate iterator name: %q", it.Name),
				Code:    ErrDuplicateIterator,
			})
		}
		iterators[it.Name] = true

		// E108: iterator names must not shadow routine variables
		if binding.IsBuiltin(it.Name) {
			errs = append(errs, ValidationError{
				Field:   itField + ".name",
				Message: fmt.Sprintf("iterator name %q is a routine variable", it.Name),
				Code:    ErrIteratorName,
			})
		}
	}

	return errs
}
