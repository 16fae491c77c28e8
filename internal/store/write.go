package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/labroutine/internal/ir"
)

// BeginRun records that a run started or resumed.
// A new run is inserted; an existing run is moved back to running with its
// fault cleared. Either way the run becomes the latest run. The shuffle
// flag and seed of an existing run are never changed.
func (s *Store) BeginRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, routine_name, script_hash, shuffle, seed, state, fault, begin_seq)
		VALUES (?, ?, ?, ?, ?, 'running', '', (SELECT COALESCE(MAX(begin_seq), 0) + 1 FROM runs))
		ON CONFLICT(id) DO UPDATE SET
			script_hash = excluded.script_hash,
			state = 'running',
			fault = '',
			begin_seq = excluded.begin_seq
	`,
		run.ID,
		run.RoutineName,
		run.ScriptHash,
		run.Shuffle,
		int64(run.Seed),
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// WriteNextModel durably records the model selected by a cycle.
//
// The record and the run's cycle cursor are written in one transaction.
// Writing the same record twice is a no-op; writing a different record for
// a cycle that already has one returns a *RecordConflictError.
func (s *Store) WriteNextModel(ctx context.Context, rec ir.NextModelRecord) (err error) {
	body, err := marshalRecord(rec)
	if err != nil {
		return fmt.Errorf("write next model: %w", err)
	}
	sum, err := ir.RecordChecksum(rec)
	if err != nil {
		return fmt.Errorf("write next model: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write next model: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO next_model_records (run_id, cycle, model_index, record, checksum, dispatched)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(run_id, cycle) DO NOTHING
	`,
		rec.RunID,
		rec.Cycle,
		rec.ModelIndex,
		body,
		sum,
	)
	if err != nil {
		return fmt.Errorf("write next model: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write next model: %w", err)
	}
	if inserted == 0 {
		var existing string
		if err := tx.QueryRowContext(ctx,
			`SELECT checksum FROM next_model_records WHERE run_id = ? AND cycle = ?`,
			rec.RunID, rec.Cycle,
		).Scan(&existing); err != nil {
			return fmt.Errorf("write next model: %w", err)
		}
		if existing != sum {
			return &RecordConflictError{RunID: rec.RunID, Cycle: rec.Cycle}
		}
		return tx.Commit()
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE runs SET last_cycle = ? WHERE id = ? AND last_cycle < ?
	`, rec.Cycle, rec.RunID, rec.Cycle)
	if err != nil {
		return fmt.Errorf("write next model: update cursor: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write next model: %w", err)
	} else if n == 0 {
		return fmt.Errorf("write next model: cycle %d is not after the cursor of run %s", rec.Cycle, rec.RunID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write next model: commit: %w", err)
	}
	return nil
}

// MarkDispatched flags a record as handed to the hardware.
func (s *Store) MarkDispatched(ctx context.Context, runID string, cycle int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE next_model_records SET dispatched = 1 WHERE run_id = ? AND cycle = ?
	`, runID, cycle)
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark dispatched: run %s cycle %d: %w", runID, cycle, ErrRecordNotFound)
	}
	return nil
}

// FinishRun records the final state of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, state ir.RunState, fault string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, fault = ? WHERE id = ?
	`, string(state), fault, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Sentinel errors for missing rows.
var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRecordNotFound = errors.New("next-model record not found")
)

// RecordConflictError is returned when a cycle already has a different
// record.
type RecordConflictError struct {
	RunID string
	Cycle int64
}

func (e *RecordConflictError) Error() string {
	return fmt.Sprintf("run %s already has a different record for cycle %d", e.RunID, e.Cycle)
}

// ChecksumMismatchError is returned when a stored record does not match
// its checksum.
type ChecksumMismatchError struct {
	RunID    string
	Cycle    int64
	Stored   string
	Computed string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("record checksum mismatch for run %s cycle %d: stored %s, computed %s",
		e.RunID, e.Cycle, e.Stored, e.Computed)
}

// IsChecksumMismatch reports whether err is or wraps a *ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var e *ChecksumMismatchError
	return errors.As(err, &e)
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
