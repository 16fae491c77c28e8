package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseBindings() Bindings {
	return Bindings{
		"current_mode":     int64(0),
		"previous_mode":    int64(0),
		"global_counter":   int64(4),
		"start_of_routine": false,
		"primary_model":    "models/primary.seq",
		"secondary_models": []string{"models/a.seq", "models/b.seq"},
		"routine_array":    []float64{},
	}
}

func evaluate(t *testing.T, src string, in Bindings) Bindings {
	t.Helper()
	out, err := NewHCLEvaluator().Evaluate(context.Background(), src, in)
	require.NoError(t, err)
	return out
}

// =============================================================================
// Assignment
// =============================================================================

func TestEvaluate_AssignCurrentMode(t *testing.T) {
	out := evaluate(t, "current_mode = global_counter % 2 == 0 ? 1 : 0", baseBindings())
	assert.Equal(t, int64(1), out["current_mode"])
}

func TestEvaluate_InputsPassThrough(t *testing.T) {
	out := evaluate(t, "x = 1", baseBindings())

	assert.Equal(t, int64(4), out["global_counter"])
	assert.Equal(t, false, out["start_of_routine"])
	assert.Equal(t, "models/primary.seq", out["primary_model"])
	assert.Equal(t, []string{"models/a.seq", "models/b.seq"}, out["secondary_models"])
	assert.Equal(t, []float64{}, out["routine_array"])
}

func TestEvaluate_StatementsRunInOrder(t *testing.T) {
	out := evaluate(t, "x = 2\ny = x * 3\nx = y + 1", baseBindings())
	assert.Equal(t, int64(7), out["x"])
	assert.Equal(t, int64(6), out["y"])
}

func TestEvaluate_FractionalNumber(t *testing.T) {
	out := evaluate(t, "x = 1 / 4", baseBindings())
	assert.Equal(t, 0.25, out["x"])
}

func TestEvaluate_EmptyStringListKeepsType(t *testing.T) {
	in := baseBindings()
	in["secondary_models"] = []string{}

	out := evaluate(t, "x = 1", in)
	assert.Equal(t, []string{}, out["secondary_models"])
}

// =============================================================================
// Lists
// =============================================================================

func TestEvaluate_AppendToRoutineArray(t *testing.T) {
	out := evaluate(t, "routine_array += 1.5\nroutine_array += global_counter", baseBindings())
	assert.Equal(t, []float64{1.5, 4}, out["routine_array"])
}

func TestEvaluate_AppendList(t *testing.T) {
	in := baseBindings()
	in["routine_array"] = []float64{1}

	out := evaluate(t, "routine_array += [2, 3]", in)
	assert.Equal(t, []float64{1, 2, 3}, out["routine_array"])
}

func TestEvaluate_IndexAssign(t *testing.T) {
	in := baseBindings()
	in["routine_array"] = []float64{2, 3}

	out := evaluate(t, "routine_array[0] = 1\nroutine_array[1] = routine_array[1] * 2", in)
	assert.Equal(t, []float64{1, 6}, out["routine_array"])
}

func TestEvaluate_AddToNumber(t *testing.T) {
	out := evaluate(t, "n = 1\nn += 2", baseBindings())
	assert.Equal(t, int64(3), out["n"])
}

func TestEvaluate_ForExpressionAndFunctions(t *testing.T) {
	in := baseBindings()
	in["routine_array"] = []float64{1, 2, 3}

	out := evaluate(t, "doubled = [for v in routine_array : v * 2]\ntotal = sum(doubled)\nmean = avg(routine_array)\nn = length(secondary_models)", in)
	assert.Equal(t, []float64{2, 4, 6}, out["doubled"])
	assert.Equal(t, int64(12), out["total"])
	assert.Equal(t, int64(2), out["mean"])
	assert.Equal(t, int64(2), out["n"])
}

func TestEvaluate_StringFunctions(t *testing.T) {
	out := evaluate(t, "label = upper(\"primary\")\nmsg = \"cycle ${global_counter}\"", baseBindings())
	assert.Equal(t, "PRIMARY", out["label"])
	assert.Equal(t, "cycle 4", out["msg"])
}

// =============================================================================
// Runtime errors
// =============================================================================

func requireRuntimeError(t *testing.T, err error) *RuntimeError {
	t.Helper()
	require.Error(t, err)
	re, ok := err.(*RuntimeError)
	require.True(t, ok, "expected *RuntimeError, got %T: %v", err, err)
	return re
}

func TestEvaluate_IndexOutOfRange(t *testing.T) {
	_, err := NewHCLEvaluator().Evaluate(context.Background(), "routine_array[5] = 1", baseBindings())
	re := requireRuntimeError(t, err)
	assert.Contains(t, re.Message, "out of range")
	assert.Equal(t, 1, re.Line)
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	_, err := NewHCLEvaluator().Evaluate(context.Background(), "x = 1\ncurrent_mode = \"a\" + 1", baseBindings())
	re := requireRuntimeError(t, err)
	assert.Equal(t, 2, re.Line)
}

func TestEvaluate_AverageOfEmptyList(t *testing.T) {
	_, err := NewHCLEvaluator().Evaluate(context.Background(), "m = avg(routine_array)", baseBindings())
	requireRuntimeError(t, err)
}

func TestEvaluate_NonFiniteResult(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"local", "x = 1 / 0"},
		{"negative", "x = -1 / 0"},
		{"routine array", "routine_array += 1 / 0\ncurrent_mode = 0"},
		{"list", "xs = [1, 1 / 0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHCLEvaluator().Evaluate(context.Background(), tt.src, baseBindings())
			re := requireRuntimeError(t, err)
			assert.Contains(t, re.Message, "not finite")
		})
	}
}

func TestEvaluate_InfinityOverwrittenIsFine(t *testing.T) {
	out := evaluate(t, "x = 1 / 0\nx = 2", baseBindings())
	assert.Equal(t, int64(2), out["x"])
}

func TestEvaluate_SyntaxErrorIsRuntimeError(t *testing.T) {
	_, err := NewHCLEvaluator().Evaluate(context.Background(), "current_mode = (", baseBindings())
	assert.True(t, IsRuntimeError(err))
}

func TestEvaluate_UnsupportedBinding(t *testing.T) {
	in := baseBindings()
	in["weird"] = struct{}{}

	_, err := NewHCLEvaluator().Evaluate(context.Background(), "x = 1", in)
	requireRuntimeError(t, err)
}

func TestEvaluate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHCLEvaluator().Evaluate(ctx, "x = 1", baseBindings())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunctionNames_Sorted(t *testing.T) {
	names := FunctionNames()
	require.NotEmpty(t, names)
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "sum")
	assert.Contains(t, FunctionSignatures(), "sum(list)")
}

func TestBindings_CloneCopiesSlices(t *testing.T) {
	b := Bindings{"routine_array": []float64{1}}
	c := b.Clone()
	c["routine_array"].([]float64)[0] = 9
	assert.Equal(t, []float64{1}, b["routine_array"])
}
