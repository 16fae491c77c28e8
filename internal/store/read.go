package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/labroutine/internal/ir"
)

// LatestRun returns the run most recently started or resumed.
// The bool is false when the store holds no runs.
func (s *Store) LatestRun(ctx context.Context) (ir.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, routine_name, script_hash, shuffle, seed, state, fault
		FROM runs
		ORDER BY begin_seq DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if isNoRows(err) {
		return ir.Run{}, false, nil
	}
	if err != nil {
		return ir.Run{}, false, fmt.Errorf("latest run: %w", err)
	}
	return run, true, nil
}

// ReadRun returns a run by id.
// Returns ErrRunNotFound if there is no such run.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, routine_name, script_hash, shuffle, seed, state, fault
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if isNoRows(err) {
		return ir.Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return ir.Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run, latest first.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, routine_name, script_hash, shuffle, seed, state, fault
		FROM runs
		ORDER BY begin_seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRecord returns the record of the last committed cycle of a run.
// The bool is false when the run has no records. The checksum is verified.
func (s *Store) LatestRecord(ctx context.Context, runID string) (ir.NextModelRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, cycle, record, checksum, dispatched
		FROM next_model_records
		WHERE run_id = ?
		ORDER BY cycle DESC
		LIMIT 1
	`, runID)
	rec, err := scanRecord(row)
	if isNoRows(err) {
		return ir.NextModelRecord{}, false, nil
	}
	if err != nil {
		return ir.NextModelRecord{}, false, fmt.Errorf("latest record of run %s: %w", runID, err)
	}
	return rec, true, nil
}

// ReadRecords returns every record of a run ordered by cycle.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRecords(ctx context.Context, runID string) ([]ir.NextModelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, cycle, record, checksum, dispatched
		FROM next_model_records
		WHERE run_id = ?
		ORDER BY cycle ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []ir.NextModelRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var (
		run   ir.Run
		seed  int64
		state string
	)
	if err := row.Scan(&run.ID, &run.RoutineName, &run.ScriptHash, &run.Shuffle, &seed, &state, &run.Fault); err != nil {
		if err == sql.ErrNoRows {
			return ir.Run{}, err
		}
		return ir.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Seed = uint64(seed)
	run.State = ir.RunState(state)
	return run, nil
}

// scanRecord reads a record row and verifies its checksum.
func scanRecord(row scanner) (ir.NextModelRecord, error) {
	var (
		runID      string
		cycle      int64
		body       string
		stored     string
		dispatched bool
	)
	if err := row.Scan(&runID, &cycle, &body, &stored, &dispatched); err != nil {
		if err == sql.ErrNoRows {
			return ir.NextModelRecord{}, err
		}
		return ir.NextModelRecord{}, fmt.Errorf("scan record: %w", err)
	}

	rec, err := unmarshalRecord(body)
	if err != nil {
		return ir.NextModelRecord{}, fmt.Errorf("run %s cycle %d: %w", runID, cycle, err)
	}
	computed, err := ir.RecordChecksum(rec)
	if err != nil {
		return ir.NextModelRecord{}, fmt.Errorf("run %s cycle %d: %w", runID, cycle, err)
	}
	if computed != stored || rec.RunID != runID || rec.Cycle != cycle {
		return ir.NextModelRecord{}, &ChecksumMismatchError{
			RunID:    runID,
			Cycle:    cycle,
			Stored:   stored,
			Computed: computed,
		}
	}
	rec.Dispatched = dispatched
	return rec, nil
}
