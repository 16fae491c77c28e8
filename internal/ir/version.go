package ir

// Version constants for persisted records and the engine.
const (
	// RecordVersion is the NextModelRecord schema version.
	RecordVersion = "1"

	// EngineVersion is the routine engine version.
	EngineVersion = "0.1.0"
)
