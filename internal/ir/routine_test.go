package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRoutine() Routine {
	return Routine{
		Name: "demo",
		Models: []Model{
			{Index: 0, Name: "Main", Path: "models/main.seq", Iterators: []IteratorVariable{
				{Name: "freq", Values: []float64{1, 2, 3}},
				{Name: "amp", Values: []float64{0.1, 0.2}},
			}},
			{Index: 1, Name: "Calibration", Path: "models/cal.seq"},
		},
	}
}

func TestModel_ScanSize(t *testing.T) {
	r := testRoutine()
	assert.Equal(t, 6, r.Models[0].ScanSize())
	assert.True(t, r.Models[0].IsIterating())
	assert.Equal(t, 0, r.Models[1].ScanSize())
	assert.False(t, r.Models[1].IsIterating())
}

func TestRoutine_ModelByLabel(t *testing.T) {
	r := testRoutine()

	idx, ok := r.ModelByLabel("calibration")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = r.ModelByLabel("models/main.seq")
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = r.ModelByLabel("unknown")
	assert.False(t, ok)
}

func TestRoutine_SecondaryPaths(t *testing.T) {
	r := testRoutine()
	assert.Equal(t, []string{"models/cal.seq"}, r.SecondaryPaths())
	assert.Equal(t, "models/main.seq", r.Primary().Path)
}

func TestRoutine_EffectiveScanCount(t *testing.T) {
	r := testRoutine()
	assert.Equal(t, DefaultScanCount, r.EffectiveScanCount())
	r.ScanCount = 4
	assert.Equal(t, 4, r.EffectiveScanCount())
}

func TestScripts_Combined(t *testing.T) {
	assert.Equal(t, "b", Scripts{Repetitive: "b"}.Combined())
	assert.Equal(t, "a\nb", Scripts{Initialization: "a", Repetitive: "b"}.Combined())
}

func TestCounters_Reset(t *testing.T) {
	c := Counters{IterationOfScan: 4, CompletedScans: 2, StartCounterOfScans: 9, GCIsSet: true}
	c.Reset()
	assert.Equal(t, 1, c.IterationOfScan)
	assert.Equal(t, 0, c.CompletedScans)
	assert.False(t, c.GCIsSet)
}
