package engine

import (
	"errors"
	"fmt"
)

// FaultError is a failure that ended a run, or that kept one from starting.
//
// FaultError includes structured fields for diagnostics and recovery.
type FaultError struct {
	// Code identifies the fault category.
	Code FaultCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, empty if no run started.
	RunID string

	// Cycle is the cycle that faulted, 0 if none.
	Cycle int64

	// Err is the underlying error, if any.
	Err error
}

// FaultCode categorizes faults.
type FaultCode string

const (
	// ErrCodeScriptSyntax indicates the script pair failed validation.
	// It only ever refuses a Start; it never stops a running routine.
	ErrCodeScriptSyntax FaultCode = "SCRIPT_SYNTAX"

	// ErrCodeScriptRuntime indicates the evaluator failed during a cycle.
	ErrCodeScriptRuntime FaultCode = "SCRIPT_RUNTIME"

	// ErrCodeInvalidModelSelection indicates current_mode did not select
	// a model.
	ErrCodeInvalidModelSelection FaultCode = "INVALID_MODEL_SELECTION"

	// ErrCodePersistence indicates the gateway failed to record state.
	ErrCodePersistence FaultCode = "PERSISTENCE_FAILURE"

	// ErrCodeDispatch indicates the hardware refused the selected model.
	ErrCodeDispatch FaultCode = "DISPATCH_FAILURE"
)

// Error implements the error interface.
func (e *FaultError) Error() string {
	if e.RunID != "" && e.Cycle > 0 {
		return fmt.Sprintf("%s: %s (run=%s, cycle=%d)", e.Code, e.Message, e.RunID, e.Cycle)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *FaultError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code FaultCode) bool {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsScriptSyntaxError returns true if err is a SCRIPT_SYNTAX fault.
// Uses errors.As to handle wrapped errors.
func IsScriptSyntaxError(err error) bool {
	return hasCode(err, ErrCodeScriptSyntax)
}

// IsScriptRuntimeError returns true if err is a SCRIPT_RUNTIME fault.
func IsScriptRuntimeError(err error) bool {
	return hasCode(err, ErrCodeScriptRuntime)
}

// IsInvalidModelSelection returns true if err is an
// INVALID_MODEL_SELECTION fault.
func IsInvalidModelSelection(err error) bool {
	return hasCode(err, ErrCodeInvalidModelSelection)
}

// IsPersistenceFailure returns true if err is a PERSISTENCE_FAILURE fault.
func IsPersistenceFailure(err error) bool {
	return hasCode(err, ErrCodePersistence)
}

// IsDispatchFailure returns true if err is a DISPATCH_FAILURE fault.
func IsDispatchFailure(err error) bool {
	return hasCode(err, ErrCodeDispatch)
}

// newFault creates a FaultError wrapping err.
func newFault(code FaultCode, runID string, cycle int64, err error) *FaultError {
	return &FaultError{
		Code:    code,
		Message: err.Error(),
		RunID:   runID,
		Cycle:   cycle,
		Err:     err,
	}
}

// Sentinel errors for calls made in the wrong state.
var (
	ErrRunning         = errors.New("routine is running")
	ErrNothingToResume = errors.New("no run to resume")
	ErrRunFinished     = errors.New("run already finished")
	ErrRoutineMismatch = errors.New("run belongs to a different routine")
	ErrScriptsChanged  = errors.New("scripts changed since the run began")
	ErrNoModels        = errors.New("routine has no models")
)
