package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labroutine/internal/ir"
)

func models(scanSizes ...int) []ir.Model {
	out := make([]ir.Model, len(scanSizes))
	for i, size := range scanSizes {
		m := ir.Model{Index: i, Name: "m", Path: "p"}
		if size > 0 {
			values := make([]float64, size)
			for j := range values {
				values[j] = float64(j)
			}
			m.Iterators = []ir.IteratorVariable{{Name: "x", Values: values}}
		}
		out[i] = m
	}
	return out
}

func TestNew_FreshCounters(t *testing.T) {
	s := New(models(3, 0))
	require.Equal(t, 2, s.Len())

	for i := 0; i < 2; i++ {
		c, err := s.Get(i)
		require.NoError(t, err)
		assert.Equal(t, ir.NewCounters(), c)
	}
}

func TestAdvanceIteration_WrapsAfterScanSize(t *testing.T) {
	s := New(models(3))

	var completed []bool
	for i := 0; i < 6; i++ {
		done, err := s.AdvanceIteration(0)
		require.NoError(t, err)
		completed = append(completed, done)
	}

	assert.Equal(t, []bool{false, false, true, false, false, true}, completed)
	c, _ := s.Get(0)
	assert.Equal(t, 1, c.IterationOfScan)
	assert.Equal(t, 2, c.CompletedScans)
}

func TestAdvanceIteration_NeverBelowOneNeverAboveSize(t *testing.T) {
	s := New(models(4))
	for i := 0; i < 50; i++ {
		_, err := s.AdvanceIteration(0)
		require.NoError(t, err)
		c, _ := s.Get(0)
		assert.GreaterOrEqual(t, c.IterationOfScan, 1)
		assert.LessOrEqual(t, c.IterationOfScan, 4)
	}
}

func TestAdvanceIteration_NotIteratingModel(t *testing.T) {
	s := New(models(0))
	done, err := s.AdvanceIteration(0)
	require.NoError(t, err)
	assert.False(t, done)

	c, _ := s.Get(0)
	assert.Equal(t, 1, c.IterationOfScan)
	assert.Equal(t, 0, c.CompletedScans)
	assert.False(t, s.IsAdvancing(0))
}

func TestAdvanceIteration_ScanOnlyOnce(t *testing.T) {
	s := New(models(2), WithScanOnlyOnce(true))
	assert.True(t, s.IsAdvancing(0))

	for i := 0; i < 5; i++ {
		_, err := s.AdvanceIteration(0)
		require.NoError(t, err)
	}

	c, _ := s.Get(0)
	assert.Equal(t, 1, c.CompletedScans)
	assert.Equal(t, 1, c.IterationOfScan)
	assert.False(t, s.IsAdvancing(0))
}

func TestBeginScanSet_StampsOnce(t *testing.T) {
	s := New(models(3))

	require.NoError(t, s.BeginScanSet(0, 7))
	require.NoError(t, s.BeginScanSet(0, 12))

	c, _ := s.Get(0)
	assert.True(t, c.GCIsSet)
	assert.Equal(t, int64(7), c.StartCounterOfScans)
}

func TestReset_ThenBeginScanSetMatchesFreshModel(t *testing.T) {
	used := New(models(3))
	require.NoError(t, used.BeginScanSet(0, 2))
	for i := 0; i < 4; i++ {
		_, err := used.AdvanceIteration(0)
		require.NoError(t, err)
	}
	require.NoError(t, used.Reset(0))
	require.NoError(t, used.BeginScanSet(0, 10))

	fresh := New(models(3))
	require.NoError(t, fresh.BeginScanSet(0, 10))

	a, _ := used.Get(0)
	b, _ := fresh.Get(0)
	assert.Equal(t, b, a)
}

func TestResetAll(t *testing.T) {
	s := New(models(2, 2))
	for i := 0; i < 2; i++ {
		require.NoError(t, s.BeginScanSet(i, 1))
		_, err := s.AdvanceIteration(i)
		require.NoError(t, err)
	}
	s.ResetAll()

	for _, c := range s.Snapshot() {
		assert.Equal(t, 1, c.IterationOfScan)
		assert.Equal(t, 0, c.CompletedScans)
		assert.False(t, c.GCIsSet)
	}
}

func TestUnknownModel(t *testing.T) {
	s := New(models(1))

	_, err := s.AdvanceIteration(5)
	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 5, unknown.Index)

	assert.Error(t, s.BeginScanSet(-1, 0))
	assert.Error(t, s.Reset(2))
	_, err = s.Get(2)
	assert.Error(t, err)
	_, err = s.ScanSize(2)
	assert.Error(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	s := New(models(3, 2))
	require.NoError(t, s.BeginScanSet(0, 4))
	_, err := s.AdvanceIteration(0)
	require.NoError(t, err)

	snap := s.Snapshot()
	_, err = s.AdvanceIteration(0)
	require.NoError(t, err)
	_, err = s.AdvanceIteration(1)
	require.NoError(t, err)

	require.NoError(t, s.Restore(snap))
	assert.Equal(t, snap, s.Snapshot())
}

func TestRestore_RejectsMismatchedSnapshot(t *testing.T) {
	s := New(models(3, 2))
	assert.Error(t, s.Restore([]ir.Counters{ir.NewCounters()}))
	assert.Error(t, s.Restore([]ir.Counters{ir.NewCounters(), {IterationOfScan: 0}}))
}
