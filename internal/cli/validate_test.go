package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var benchRoutine = filepath.Join("..", "harness", "testdata", "routines", "bench.cue")

// writeRoutine writes a routine file into a temp directory.
func writeRoutine(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routine.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateValidRoutine(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{benchRoutine, "--routine", "scan"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\u2713 Routine scan valid (2 model(s))")
}

func TestValidateValidRoutineJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{benchRoutine, "--routine", "accumulate"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "accumulate", resp.Data.Routine)
	assert.Equal(t, 1, resp.Data.Models)
}

func TestValidateNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/routine.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, buf.String(), "not found")
}

func TestValidateAmbiguousRoutine(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{benchRoutine})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeLoadFailed)
	assert.Contains(t, buf.String(), "choose one of")
}

func TestValidateScriptErrors(t *testing.T) {
	path := writeRoutine(t, `routine: drift: {
	models: [{name: "monitor", path: "monitor.seq"}]
	scripts: repetitive: "global_counter = 1"
}`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with")

	output := buf.String()
	assert.Contains(t, output, "\u2717 Validation failed")
	assert.Contains(t, output, "E120")
}

func TestValidateScriptErrorsJSON(t *testing.T) {
	path := writeRoutine(t, `routine: drift: {
	models: [{name: "monitor", path: "monitor.seq"}]
	scripts: repetitive: "global_counter = 1"
}`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	require.Error(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E120", resp.Error.Code)
}
