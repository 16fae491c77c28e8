// Package store provides SQLite-backed durable storage for routine runs.
//
// The store holds two tables:
//   - runs: one row per run with its routine, script hash and state
//   - next_model_records: the model selected by each committed cycle,
//     with counters, routine array and script variables
//
// # Durability
//
// A next-model record and its run's cycle cursor are written in one
// transaction before the model is dispatched. Each record carries a
// SHA-256 checksum of its canonical JSON body (see internal/ir), checked
// on every read. A record whose checksum does not match is never used to
// resume a run.
//
// # Ordering
//
// Runs are ordered by begin_seq, a logical sequence bumped by every Start
// and Resume, never by timestamps. Records are ordered by cycle.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: Commits survive power loss
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Records must belong to a run
package store
