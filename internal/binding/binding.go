package binding

import (
	"fmt"
	"math"

	"github.com/roach88/labroutine/internal/ir"
	"github.com/roach88/labroutine/internal/script"
)

// State is everything the bindings of one cycle are computed from.
type State struct {
	Routine        ir.Routine
	CurrentMode    int
	PreviousMode   int
	StartOfRoutine bool
	GlobalCounter  int64

	// Counters and ScanSize belong to the current model.
	Counters ir.Counters
	ScanSize int

	RoutineArray []float64
	Locals       map[string]any
}

// Build returns the bindings for one cycle. Script locals from earlier
// cycles are included; built-in variables take precedence over them.
func Build(s State) script.Bindings {
	b := script.Bindings(s.Locals).Clone()

	primary := ""
	if s.Routine.NumModels() > 0 {
		primary = s.Routine.Primary().Path
	}
	secondary := s.Routine.SecondaryPaths()
	array := append(make([]float64, 0, len(s.RoutineArray)), s.RoutineArray...)

	b[VarCurrentMode] = int64(s.CurrentMode)
	b[VarPreviousMode] = int64(s.PreviousMode)
	b[VarPrimaryModel] = primary
	b[VarSecondaryModels] = secondary
	b[VarRoutineArray] = array
	b[VarStartOfRoutine] = s.StartOfRoutine
	b[VarGlobalCounter] = s.GlobalCounter
	b[VarNumberOfIterations] = int64(s.ScanSize)
	b[VarNextIteration] = int64(s.Counters.IterationOfScan)
	b[VarCompletedScans] = int64(s.Counters.CompletedScans)
	b[VarStartCounterOfScans] = s.Counters.StartCounterOfScans
	b[VarScanOnlyOnce] = s.Routine.ScanOnlyOnce
	b[VarControlLeCroy] = s.Routine.ControlLeCroy
	b[VarStopAfterScan] = s.Routine.StopAfterScan
	b[VarShuffleIterations] = s.Routine.ShuffleIterations
	return b
}

// Result is what a cycle takes back from the script.
type Result struct {
	Mode         ModeSelection
	RoutineArray []float64
	Locals       map[string]any
}

// TypeError reports a writable variable left holding a value of the wrong
// type.
type TypeError struct {
	Variable string
	Got      string
	Want     script.VariableType
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("%s must be %s, got %s", e.Variable, e.Want, e.Got)
}

// ReadBack extracts the writable variables and the script locals from the
// evaluator output. A current_mode that is neither a whole number nor a
// string is a *SelectionError; a routine_array that is not a list of
// numbers is a *TypeError. NaN and infinities are rejected, since they
// cannot be persisted.
func ReadBack(out script.Bindings) (Result, error) {
	mode, err := ParseMode(out[VarCurrentMode])
	if err != nil {
		return Result{}, err
	}

	var array []float64
	switch v := out[VarRoutineArray].(type) {
	case []float64:
		array = append(make([]float64, 0, len(v)), v...)
	case []string:
		if len(v) != 0 {
			return Result{}, &TypeError{Variable: VarRoutineArray, Got: "list of strings", Want: script.TypeDoubleArray}
		}
		array = []float64{}
	case nil:
		array = []float64{}
	default:
		return Result{}, &TypeError{Variable: VarRoutineArray, Got: fmt.Sprintf("%T", v), Want: script.TypeDoubleArray}
	}

	if !finite(array) {
		return Result{}, fmt.Errorf("%s holds a number that is not finite", VarRoutineArray)
	}

	var locals map[string]any
	for name, v := range out {
		if IsBuiltin(name) {
			continue
		}
		if !finite(v) {
			return Result{}, fmt.Errorf("variable %q holds a number that is not finite", name)
		}
		if locals == nil {
			locals = make(map[string]any)
		}
		locals[name] = v
	}

	return Result{Mode: mode, RoutineArray: array, Locals: locals}, nil
}

func finite(v any) bool {
	switch val := v.(type) {
	case float64:
		return !math.IsNaN(val) && !math.IsInf(val, 0)
	case []float64:
		for _, f := range val {
			if !finite(f) {
				return false
			}
		}
	}
	return true
}
