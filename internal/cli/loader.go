package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/labroutine/internal/compiler"
)

// Error codes for CLI operations (E001-E099).
const (
	ErrCodeGeneric    = "E001" // generic error
	ErrCodeNotFound   = "E005" // routine file not found
	ErrCodeLoadFailed = "E004" // routine file failed to compile
)

// LoadError represents an error that occurred while loading a routine.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadRoutine compiles the named routine of a CUE file.
// Every error it returns is a *LoadError.
func loadRoutine(path, name string) (*compiler.Definition, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("routine file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing routine file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	def, err := compiler.LoadRoutine(path, name)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return def, nil
}

// convertCompileError converts a compiler error to a LoadError, keeping
// its position.
func convertCompileError(err error) *LoadError {
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("%s: %s", cErr.Field, cErr.Message),
			Pos:     cErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// loadFailure outputs a load error and returns the command error for it.
func loadFailure(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	var details any
	if line := lineOf(loadErr.Pos); line > 0 {
		details = map[string]any{"line": line}
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
}
