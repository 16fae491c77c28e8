// Package script defines the control-script surface of a measurement
// routine: the evaluator contract the engine depends on, the variable
// descriptors, the static validator, and an evaluator backed by the HCL
// expression language.
//
// A script is a sequence of statements, one per line:
//
//	name = expression        assign (defines a local if name is new)
//	name[index] = expression assign one element of a list
//	name += expression       append to a list, or add to a number
//
// Expressions use HCL syntax (arithmetic, comparisons, the conditional
// operator, for expressions, function calls). Statements run in order and
// each sees the assignments made before it. Comments start with # or //.
//
// Example:
//
//	# alternate between the primary and the first secondary model
//	current_mode = global_counter % 2 == 0 ? 0 : 1
//	routine_array += global_counter * 0.5
package script
