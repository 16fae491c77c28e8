package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labroutine/internal/binding"
	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/script"
)

func TestModeSequence_RepeatsLast(t *testing.T) {
	ev := ModeSequence(int64(1), int64(0))
	ctx := context.Background()

	var got []any
	for i := 0; i < 3; i++ {
		out, err := ev.Evaluate(ctx, "src", script.Bindings{})
		require.NoError(t, err)
		got = append(got, out[binding.VarCurrentMode])
	}
	assert.Equal(t, []any{int64(1), int64(0), int64(0)}, got)
	assert.Len(t, ev.Calls(), 3)
	assert.Equal(t, []string{"src", "src", "src"}, ev.Sources())
}

func TestMemoryGateway_Lifecycle(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	_, ok, err := g.LatestRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.BeginRun(ctx, ir.Run{ID: "run-1", RoutineName: "r"}))
	require.NoError(t, g.WriteNextModel(ctx, ir.NextModelRecord{RunID: "run-1", Cycle: 1}))
	require.NoError(t, g.MarkDispatched(ctx, "run-1", 1))

	rec, ok, err := g.LatestRecord(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, rec.Dispatched)

	g.FailWriteAt(2)
	assert.ErrorIs(t, g.WriteNextModel(ctx, ir.NextModelRecord{RunID: "run-1", Cycle: 2}), ErrInjected)

	require.NoError(t, g.FinishRun(ctx, "run-1", ir.RunStateStopped, ""))
	run, ok := g.Run("run-1")
	require.True(t, ok)
	assert.Equal(t, ir.RunStateStopped, run.State)
}

func TestRecordingDispatcher(t *testing.T) {
	d := NewRecordingDispatcher()
	var hooked int
	d.OnDispatch(func(ir.Dispatch) { hooked++ })
	d.FailAt(2)

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, ir.Dispatch{Cycle: 1, Model: ir.Model{Index: 1}}))
	assert.ErrorIs(t, d.Dispatch(ctx, ir.Dispatch{Cycle: 2}), ErrInjected)

	assert.Equal(t, []int{1}, d.Models())
	assert.Equal(t, 1, hooked)
}

func TestStepClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewStepClock(start, time.Second)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Second), c.Now())
}

func TestSequentialRunIDs(t *testing.T) {
	g := NewSequentialRunIDs("run")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())
}
