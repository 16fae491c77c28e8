package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleQuota_WithinLimit(t *testing.T) {
	q := NewCycleQuota(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Check("run-1"), "cycle %d should be allowed", i+1)
		q.Spend()
	}
	require.Error(t, q.Check("run-1"), "a fourth cycle is over the limit")
}

func TestCycleQuota_Exhausted(t *testing.T) {
	q := NewCycleQuota(2)
	q.Spend()
	q.Spend()

	err := q.Check("run-1")
	var ce *CyclesExhaustedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "run-1", ce.RunID)
	assert.Equal(t, 2, ce.Cycles)
	assert.Equal(t, 2, ce.Limit)
	assert.Equal(t, "run run-1 reached its cycle limit: 2 cycles, limit 2", err.Error())
}

func TestCycleQuota_Unlimited(t *testing.T) {
	q := NewCycleQuota(0)
	for i := 0; i < 10000; i++ {
		q.Spend()
	}
	assert.NoError(t, q.Check("run-1"))
}
