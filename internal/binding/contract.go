// Package binding builds the variables a control script sees each cycle and
// reads back what the script changed.
package binding

import "github.com/roach88/labroutine/internal/script"

// Script variable names.
const (
	VarCurrentMode         = "current_mode"
	VarPreviousMode        = "previous_mode"
	VarPrimaryModel        = "primary_model"
	VarSecondaryModels     = "secondary_models"
	VarRoutineArray        = "routine_array"
	VarStartOfRoutine      = "start_of_routine"
	VarGlobalCounter       = "global_counter"
	VarNumberOfIterations  = "number_of_iterations"
	VarNextIteration       = "next_iteration"
	VarCompletedScans      = "completed_scans"
	VarStartCounterOfScans = "start_counter_of_scans"
	VarScanOnlyOnce        = "scan_only_once"
	VarControlLeCroy       = "control_lecroy"
	VarStopAfterScan       = "stop_after_scan"
	VarShuffleIterations   = "shuffle_iterations"
)

var contract = []script.VariableSpec{
	{
		Name: VarCurrentMode, Type: script.TypeInteger, Access: script.AccessReadWrite,
		Remarks: "Index of the model to run next. A model name or path is also accepted.",
	},
	{
		Name: VarPreviousMode, Type: script.TypeInteger, Access: script.AccessRead,
		Remarks: "Index of the model run in the prior cycle.",
	},
	{
		Name: VarPrimaryModel, Type: script.TypeString, Access: script.AccessRead,
		Remarks: "Path of the primary model.",
	},
	{
		Name: VarSecondaryModels, Type: script.TypeStringArray, Access: script.AccessRead,
		Remarks: "Paths of the secondary models, in index order starting at 1.",
	},
	{
		Name: VarRoutineArray, Type: script.TypeDoubleArray, Access: script.AccessReadWrite,
		Remarks: "Shared by all cycles and models of a run. Append with += or assign by index.",
	},
	{
		Name: VarStartOfRoutine, Type: script.TypeBoolean, Access: script.AccessRead,
		Remarks: "True only on the first cycle of a run.",
	},
	{
		Name: VarGlobalCounter, Type: script.TypeInteger, Access: script.AccessRead,
		Remarks: "Cycles committed so far in this run.",
	},
	{
		Name: VarNumberOfIterations, Type: script.TypeInteger, Access: script.AccessRead,
		Remarks: "Scan size of the current model, 0 if it does not iterate.",
	},
	{
		Name: VarNextIteration, Type: script.TypeInteger, Access: script.AccessRead,
		Remarks: "Number of the previous iteration within the current scan (1 if not iterating).",
	},
	{
		Name: VarCompletedScans, Type: script.TypeInteger, Access: script.AccessRead,
		Remarks: "Scans completed by the current model (0 if not iterating).",
	},
	{
		Name: VarStartCounterOfScans, Type: script.TypeInteger, Access: script.AccessRead,
		Remarks: "Global counter when the current model's set of scans started.",
	},
	{
		Name: VarScanOnlyOnce, Type: script.TypeBoolean, Access: script.AccessRead,
		Remarks: "Iterators scan once and then hold their last value.",
	},
	{
		Name: VarControlLeCroy, Type: script.TypeBoolean, Access: script.AccessRead,
		Remarks: "Whether the routine controls the LeCroy oscilloscope.",
	},
	{
		Name: VarStopAfterScan, Type: script.TypeBoolean, Access: script.AccessRead,
		Remarks: "The routine halts once the current model completes its configured scans.",
	},
	{
		Name: VarShuffleIterations, Type: script.TypeBoolean, Access: script.AccessRead,
		Remarks: "Iteration order is randomized per scan.",
	},
}

// Contract returns the built-in variables in display order.
func Contract() []script.VariableSpec {
	out := make([]script.VariableSpec, len(contract))
	copy(out, contract)
	return out
}

// IsBuiltin reports whether name is a built-in variable.
func IsBuiltin(name string) bool {
	for _, v := range contract {
		if v.Name == name {
			return true
		}
	}
	return false
}

// NewValidator returns a script validator for the built-in variables.
func NewValidator() *script.Validator {
	return script.NewValidator(contract)
}
