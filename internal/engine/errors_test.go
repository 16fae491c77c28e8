package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultError_Error(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, "SCRIPT_RUNTIME: boom (run=run-1, cycle=3)",
		newFault(ErrCodeScriptRuntime, "run-1", 3, base).Error())
	assert.Equal(t, "PERSISTENCE_FAILURE: boom (run=run-1)",
		newFault(ErrCodePersistence, "run-1", 0, base).Error())
	assert.Equal(t, "SCRIPT_SYNTAX: boom",
		(&FaultError{Code: ErrCodeScriptSyntax, Message: "boom"}).Error())
}

func TestFaultError_Helpers(t *testing.T) {
	tests := []struct {
		code  FaultCode
		check func(error) bool
	}{
		{ErrCodeScriptSyntax, IsScriptSyntaxError},
		{ErrCodeScriptRuntime, IsScriptRuntimeError},
		{ErrCodeInvalidModelSelection, IsInvalidModelSelection},
		{ErrCodePersistence, IsPersistenceFailure},
		{ErrCodeDispatch, IsDispatchFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &FaultError{Code: tt.code, Message: "x"})
			assert.True(t, tt.check(err))
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
}

func TestFaultError_Unwrap(t *testing.T) {
	base := errors.New("disk full")
	f := newFault(ErrCodePersistence, "run-1", 1, base)
	assert.ErrorIs(t, f, base)
}
