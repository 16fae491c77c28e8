package engine

import "github.com/roach88/labroutine/internal/ir"

// State is the lifecycle state of the engine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFaulted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Phase is the step of the current cycle while Running.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePreparing
	PhaseEvaluating
	PhaseSelecting
	PhaseCommitting
	PhaseDispatching
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhasePreparing:
		return "preparing"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseSelecting:
		return "selecting"
	case PhaseCommitting:
		return "committing"
	case PhaseDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// StopReason says why a run stopped cleanly.
type StopReason string

const (
	StopRequested     StopReason = "stop requested"
	StopContextDone   StopReason = "context done"
	StopScanComplete  StopReason = "scan complete"
	StopCycleLimit    StopReason = "cycle limit reached"
	StopBeforeRunning StopReason = "stopped before start"
)

// Status is a point-in-time view of the engine.
type Status struct {
	State         State          `json:"-"`
	StateName     string         `json:"state"`
	Phase         string         `json:"phase"`
	RunID         string         `json:"run_id,omitempty"`
	Cycle         int64          `json:"cycle"`
	GlobalCounter int64          `json:"global_counter"`
	CurrentModel  int            `json:"current_model"`
	PreviousModel int            `json:"previous_model"`
	Counters      []ir.Counters  `json:"counters"`
	RoutineArray  []float64      `json:"routine_array"`
	StopReason    StopReason     `json:"stop_reason,omitempty"`
	Fault         *FaultError    `json:"-"`
	FaultMessage  string         `json:"fault,omitempty"`
	Locals        map[string]any `json:"locals,omitempty"`
}
