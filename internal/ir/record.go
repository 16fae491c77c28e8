package ir

// NotIterating is the combination index of a dispatch whose model does
// not scan iterator variables.
const NotIterating = -1

// NextModelRecord is the durable record of the model selected to run next.
// It is written before the model is dispatched and read on restart to
// resume an interrupted run.
type NextModelRecord struct {
	RunID         string `json:"run_id"`
	Cycle         int64  `json:"cycle"`
	ModelIndex    int    `json:"model_index"`
	PreviousModel int    `json:"previous_model"`

	// Iteration is the 1-based iteration dispatched, 0 when not iterating.
	Iteration int `json:"iteration"`

	// Combination is the iterator combination index dispatched, or
	// NotIterating.
	Combination int `json:"combination"`

	// ScanCompleted is set when this cycle completed a scan of the model.
	ScanCompleted bool `json:"scan_completed"`

	GlobalCounter int64          `json:"global_counter"`
	Counters      []Counters     `json:"counters"`
	RoutineArray  []float64      `json:"routine_array"`
	Locals        map[string]any `json:"locals,omitempty"`

	// Dispatched is set once the dispatcher accepted the model.
	// It is tracked separately and not covered by the checksum.
	Dispatched bool `json:"-"`
}

// canonicalMap converts the record to a map for canonical serialization.
func (r NextModelRecord) canonicalMap() map[string]any {
	counters := make([]any, len(r.Counters))
	for i, c := range r.Counters {
		counters[i] = map[string]any{
			"iteration_of_scan":      c.IterationOfScan,
			"completed_scans":        c.CompletedScans,
			"start_counter_of_scans": c.StartCounterOfScans,
			"gc_is_set":              c.GCIsSet,
		}
	}
	array := make([]any, len(r.RoutineArray))
	for i, v := range r.RoutineArray {
		array[i] = v
	}
	m := map[string]any{
		"run_id":         r.RunID,
		"cycle":          r.Cycle,
		"model_index":    r.ModelIndex,
		"previous_model": r.PreviousModel,
		"iteration":      r.Iteration,
		"combination":    r.Combination,
		"scan_completed": r.ScanCompleted,
		"global_counter": r.GlobalCounter,
		"counters":       counters,
		"routine_array":  array,
		"version":        RecordVersion,
	}
	if len(r.Locals) > 0 {
		m["locals"] = r.Locals
	}
	return m
}

// Dispatch is the request handed to the hardware for one cycle.
type Dispatch struct {
	RunID       string             `json:"run_id"`
	Cycle       int64              `json:"cycle"`
	Model       Model              `json:"model"`
	Iteration   int                `json:"iteration"`
	Combination int                `json:"combination"`
	Values      map[string]float64 `json:"values,omitempty"`
}

// RunState is the terminal or current state of a persisted run.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateStopped RunState = "stopped"
	RunStateFaulted RunState = "faulted"
)

// Run describes one end-to-end execution of a routine.
//
// Shuffle and Seed are fixed when the run starts; a resumed run scans in
// the order they produce.
type Run struct {
	ID          string   `json:"id"`
	RoutineName string   `json:"routine_name"`
	ScriptHash  string   `json:"script_hash"`
	Shuffle     bool     `json:"shuffle"`
	Seed        uint64   `json:"seed"`
	State       RunState `json:"state"`
	Fault       string   `json:"fault,omitempty"`
}
