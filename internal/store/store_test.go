package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labroutine/internal/engine"
	"github.com/roach88/labroutine/internal/ir"
)

var _ engine.Gateway = (*Store)(nil)

// createTestStore opens a store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) ir.Run {
	return ir.Run{
		ID:          id,
		RoutineName: "calibration",
		ScriptHash:  ir.ScriptHash("current_mode = 0"),
		State:       ir.RunStateRunning,
	}
}

func testRecord(runID string, cycle int64) ir.NextModelRecord {
	return ir.NextModelRecord{
		RunID:         runID,
		Cycle:         cycle,
		ModelIndex:    1,
		PreviousModel: 0,
		Iteration:     2,
		Combination:   4,
		ScanCompleted: cycle%3 == 0,
		GlobalCounter: cycle,
		Counters: []ir.Counters{
			{IterationOfScan: 3, CompletedScans: 1, StartCounterOfScans: 0, GCIsSet: true},
			{IterationOfScan: 1, CompletedScans: 0, StartCounterOfScans: 2, GCIsSet: true},
		},
		RoutineArray: []float64{0.5, 2},
		Locals: map[string]any{
			"offset": int64(3),
			"ratio":  0.25,
			"label":  "a<b>",
			"done":   true,
			"values": []float64{1, 2.5},
			"names":  []string{"x"},
			"huge":   int64(1) << 60,
		},
	}
}

func beginRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.BeginRun(context.Background(), testRun(id)))
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("synchronous", "2"))
	assert.NoError(t, s.verifyPragma("user_version", "2"))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(context.Background(), testRun("run-1")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	run, ok, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", run.ID)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}

// =============================================================================
// Runs
// =============================================================================

func TestBeginRun_Latest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	beginRun(t, s, "run-1")
	beginRun(t, s, "run-2")

	run, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-2", run.ID)

	// Resuming run-1 makes it the latest again.
	beginRun(t, s, "run-1")
	run, _, err = s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestBeginRun_ClearsFault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	beginRun(t, s, "run-1")
	require.NoError(t, s.FinishRun(ctx, "run-1", ir.RunStateFaulted, "DISPATCH_FAILURE: boom"))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.RunStateFaulted, run.State)
	assert.Equal(t, "DISPATCH_FAILURE: boom", run.Fault)

	beginRun(t, s, "run-1")
	run, err = s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.RunStateRunning, run.State)
	assert.Empty(t, run.Fault)
	assert.Equal(t, "calibration", run.RoutineName)
}

func TestFinishRun_Unknown(t *testing.T) {
	s := createTestStore(t)
	err := s.FinishRun(context.Background(), "nope", ir.RunStateStopped, "")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadRun_Unknown(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

// =============================================================================
// Records
// =============================================================================

func TestWriteNextModel_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")

	want := testRecord("run-1", 1)
	require.NoError(t, s.WriteNextModel(ctx, want))

	got, ok, err := s.LatestRecord(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.False(t, got.Dispatched)
}

func TestWriteNextModel_Latest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")

	for cycle := int64(1); cycle <= 3; cycle++ {
		require.NoError(t, s.WriteNextModel(ctx, testRecord("run-1", cycle)))
	}

	got, ok, err := s.LatestRecord(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Cycle)
	assert.True(t, got.ScanCompleted)

	all, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].Cycle)
}

func TestWriteNextModel_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")

	rec := testRecord("run-1", 1)
	require.NoError(t, s.WriteNextModel(ctx, rec))
	require.NoError(t, s.WriteNextModel(ctx, rec))

	all, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWriteNextModel_Conflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")

	rec := testRecord("run-1", 1)
	require.NoError(t, s.WriteNextModel(ctx, rec))

	rec.ModelIndex = 0
	err := s.WriteNextModel(ctx, rec)
	var ce *RecordConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.Cycle)
}

func TestWriteNextModel_CycleBehindCursor(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")

	require.NoError(t, s.WriteNextModel(ctx, testRecord("run-1", 2)))
	assert.Error(t, s.WriteNextModel(ctx, testRecord("run-1", 1)))

	all, err := s.ReadRecords(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, all, 1, "the rejected write is rolled back")
}

func TestWriteNextModel_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.WriteNextModel(context.Background(), testRecord("nope", 1)))
}

func TestWriteNextModel_NullLocal(t *testing.T) {
	s := createTestStore(t)
	beginRun(t, s, "run-1")

	rec := testRecord("run-1", 1)
	rec.Locals["missing"] = nil
	assert.Error(t, s.WriteNextModel(context.Background(), rec))
}

func TestLatestRecord_None(t *testing.T) {
	s := createTestStore(t)
	beginRun(t, s, "run-1")

	_, ok, err := s.LatestRecord(context.Background(), "run-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatestRecord_EmptyCollections(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")

	rec := testRecord("run-1", 1)
	rec.RoutineArray = []float64{}
	rec.Locals = map[string]any{"empty": []float64{}}
	require.NoError(t, s.WriteNextModel(ctx, rec))

	got, _, err := s.LatestRecord(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []float64{}, got.RoutineArray)
	assert.Equal(t, map[string]any{"empty": []float64{}}, got.Locals)
}

func TestMarkDispatched(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")
	require.NoError(t, s.WriteNextModel(ctx, testRecord("run-1", 1)))

	require.NoError(t, s.MarkDispatched(ctx, "run-1", 1))

	got, _, err := s.LatestRecord(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.Dispatched, "dispatched flag is outside the checksum")

	assert.ErrorIs(t, s.MarkDispatched(ctx, "run-1", 2), ErrRecordNotFound)
}

func TestLatestRecord_ChecksumMismatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")
	require.NoError(t, s.WriteNextModel(ctx, testRecord("run-1", 1)))

	_, err := s.DB().ExecContext(ctx,
		`UPDATE next_model_records SET record = replace(record, '"model_index":1', '"model_index":2')`)
	require.NoError(t, err)

	_, _, err = s.LatestRecord(ctx, "run-1")
	require.Error(t, err)
	assert.True(t, IsChecksumMismatch(err))
}

func TestLatestRecord_MovedRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "run-1")
	require.NoError(t, s.WriteNextModel(ctx, testRecord("run-1", 1)))

	_, err := s.DB().ExecContext(ctx, `UPDATE next_model_records SET cycle = 7`)
	require.NoError(t, err)

	_, _, err = s.LatestRecord(ctx, "run-1")
	assert.True(t, IsChecksumMismatch(err))
}

func TestBeginRun_KeepsScanSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := testRun("run-1")
	run.Shuffle = true
	run.Seed = 1<<63 | 5
	require.NoError(t, s.BeginRun(ctx, run))

	run.Shuffle = false
	run.Seed = 9
	require.NoError(t, s.BeginRun(ctx, run))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.Shuffle)
	assert.Equal(t, uint64(1<<63|5), got.Seed, "the seed of the first begin is kept")
}

func TestOpen_MigratesRunScanSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO runs (id, routine_name, script_hash, state, begin_seq) VALUES ('old', 'r', 'h', 'faulted', 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("user_version", "2"))
	run, err := s.ReadRun(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, run.Shuffle)
	assert.Equal(t, uint64(0), run.Seed)
}
