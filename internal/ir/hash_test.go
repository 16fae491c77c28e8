package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() NextModelRecord {
	return NextModelRecord{
		RunID:         "run-1",
		Cycle:         3,
		ModelIndex:    1,
		PreviousModel: 0,
		Iteration:     2,
		Combination:   1,
		GlobalCounter: 3,
		Counters:      []Counters{NewCounters(), {IterationOfScan: 3, StartCounterOfScans: 1, GCIsSet: true}},
		RoutineArray:  []float64{1, 2.5},
		Locals:        map[string]any{"threshold": 4.0},
	}
}

func TestRecordChecksum_Deterministic(t *testing.T) {
	a := MustRecordChecksum(sampleRecord())
	b := MustRecordChecksum(sampleRecord())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestRecordChecksum_IgnoresDispatched(t *testing.T) {
	rec := sampleRecord()
	before := MustRecordChecksum(rec)
	rec.Dispatched = true
	assert.Equal(t, before, MustRecordChecksum(rec))
}

func TestRecordChecksum_DetectsChanges(t *testing.T) {
	rec := sampleRecord()
	before := MustRecordChecksum(rec)
	rec.Counters[1].CompletedScans = 1
	assert.NotEqual(t, before, MustRecordChecksum(rec))
}

func TestRecordChecksum_StableAcrossJSON(t *testing.T) {
	rec := sampleRecord()
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded NextModelRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, MustRecordChecksum(rec), MustRecordChecksum(decoded))
}

func TestScriptHash_DiffersByText(t *testing.T) {
	assert.Equal(t, ScriptHash("current_mode = 0"), ScriptHash("current_mode = 0"))
	assert.NotEqual(t, ScriptHash("current_mode = 0"), ScriptHash("current_mode = 1"))
}
