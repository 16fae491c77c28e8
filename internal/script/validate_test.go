package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContract() []VariableSpec {
	return []VariableSpec{
		{Name: "current_mode", Type: TypeInteger, Access: AccessReadWrite},
		{Name: "previous_mode", Type: TypeInteger, Access: AccessRead},
		{Name: "global_counter", Type: TypeInteger, Access: AccessRead},
		{Name: "start_of_routine", Type: TypeBoolean, Access: AccessRead},
		{Name: "primary_model", Type: TypeString, Access: AccessRead},
		{Name: "secondary_models", Type: TypeStringArray, Access: AccessRead},
		{Name: "routine_array", Type: TypeDoubleArray, Access: AccessReadWrite},
	}
}

func requireSyntaxError(t *testing.T, err error) *SyntaxError {
	t.Helper()
	require.Error(t, err)
	se, ok := err.(*SyntaxError)
	require.True(t, ok, "expected *SyntaxError, got %T: %v", err, err)
	return se
}

// =============================================================================
// Accepted scripts
// =============================================================================

func TestValidate_AcceptsStatements(t *testing.T) {
	v := NewValidator(testContract())

	scripts := map[string]string{
		"assign":        "current_mode = 1",
		"conditional":   "current_mode = global_counter % 2 == 0 ? 0 : 1",
		"append":        "routine_array += global_counter * 0.5",
		"index assign":  "routine_array[0] = 2",
		"local":         "offset = 3\ncurrent_mode = offset - 3",
		"local append":  "n = 1\nn += 2",
		"function":      "current_mode = min(length(secondary_models), 1)",
		"for":           "doubled = [for v in routine_array : v * 2]",
		"comments":      "# choose a model\ncurrent_mode = 0 // primary\n",
		"multiline":     "current_mode = (\n  1 +\n  0\n)",
		"multiline list": "xs = [\n  1,\n  2,\n]",
		"blank lines":   "\n\ncurrent_mode = 0\n\n",
		"template":      "label = \"run ${global_counter}\"",
	}
	for name, src := range scripts {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, v.Validate(src))
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	v := NewValidator(testContract())

	good := "current_mode = global_counter % 2"
	assert.NoError(t, v.Validate(good))
	assert.NoError(t, v.Validate(good))

	bad := "current_mode = missing"
	first := v.Validate(bad)
	second := v.Validate(bad)
	require.Error(t, first)
	assert.Equal(t, first, second)
}

// =============================================================================
// Rejected scripts
// =============================================================================

func TestValidate_SyntaxError(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("current_mode = (1 +"))
	assert.Equal(t, 1, se.Line)
	assert.NotEmpty(t, se.Message)
}

func TestValidate_StatementForm(t *testing.T) {
	v := NewValidator(testContract())

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bare expression", "1 + 2", "expected a variable name"},
		{"comparison", "current_mode == 1", "expected '=' or '+='"},
		{"missing value", "current_mode =", "missing value"},
		{"missing operator", "current_mode", "expected '=' or '+='"},
		{"empty index", "routine_array[] = 1", "missing index"},
		{"indexed append", "routine_array[0] += 1", "cannot be used with an index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := requireSyntaxError(t, v.Validate(tt.src))
			assert.Contains(t, se.Message, tt.want)
		})
	}
}

func TestValidate_ReadOnlyVariable(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("global_counter = 3"))
	assert.Contains(t, se.Message, `"global_counter" is read-only`)
	assert.Equal(t, 1, se.Line)
	assert.Equal(t, 1, se.Column)
}

func TestValidate_UndefinedVariable(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("current_mode = foo + 1"))
	assert.Contains(t, se.Message, `undefined variable "foo"`)
	assert.Equal(t, 1, se.Line)
	assert.Equal(t, 16, se.Column)
}

func TestValidate_UndefinedVariableLaterLine(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("x = 1\ny = x + 1\ncurrent_mode = z"))
	assert.Equal(t, 3, se.Line)
}

func TestValidate_LocalUsedBeforeAssignment(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("current_mode = later\nlater = 1"))
	assert.Contains(t, se.Message, `"later"`)
}

func TestValidate_AppendToUndefined(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("total += 1"))
	assert.Contains(t, se.Message, `undefined variable "total"`)
}

func TestValidate_IndexNonList(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("current_mode[0] = 1"))
	assert.Contains(t, se.Message, "not a list")
}

func TestValidate_UnknownFunction(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Validate("current_mode = frobnicate(1)"))
	assert.Contains(t, se.Message, `unknown function "frobnicate"`)
}

// =============================================================================
// Check
// =============================================================================

func TestCheck_EmptyRepetitive(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Check("x = 1", "  \n"))
	assert.Equal(t, ErrEmptyRepetitive, se.Message)
}

func TestCheck_InitializationDefinesLocals(t *testing.T) {
	v := NewValidator(testContract())

	assert.NoError(t, v.Check("offset = 2", "current_mode = offset - 2"))
}

func TestCheck_ErrorLineCountsInitialization(t *testing.T) {
	v := NewValidator(testContract())

	se := requireSyntaxError(t, v.Check("a = 1\nb = 2", "current_mode = nope"))
	assert.Equal(t, 3, se.Line)
}

func TestSyntaxError_Error(t *testing.T) {
	assert.Equal(t, "line 2, column 5: boom", (&SyntaxError{Message: "boom", Line: 2, Column: 5}).Error())
	assert.Equal(t, "boom", (&SyntaxError{Message: "boom"}).Error())
	assert.True(t, IsSyntaxError(&SyntaxError{}))
	assert.False(t, IsSyntaxError(&RuntimeError{}))
}
