package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a routine that could not be compiled, with the source
// position of the offending value when CUE knows it.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError turns the first of a CUE error list into a CompileError
// whose field is the path of the value that failed, such as
// "routine.scan.models.0.path". Schema positions are skipped in favour of
// the routine file.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]

	field := strings.Join(errors.Path(first), ".")
	if field == "" {
		field = "cue"
	}
	format, args := first.Msg()

	ce := &CompileError{Field: field, Message: fmt.Sprintf(format, args...)}
	for _, pos := range errors.Positions(first) {
		if pos.Filename() == "schema.cue" {
			continue
		}
		ce.Pos = pos
		break
	}
	return ce
}
