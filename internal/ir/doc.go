// Package ir provides the shared domain types for the measurement routine
// engine: models and their iterator variables, per-model counters, the
// persisted next-model record, and the canonical encoding used to checksum
// persisted state.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Model index 0 is always the primary model
//   - All JSON tags use snake_case
//   - Records are checksummed over canonical JSON (sorted keys, NFC strings)
package ir
