// Package engine implements the measurement routine state machine.
//
// The engine runs a routine as a sequence of cycles. Each cycle runs the
// control script, lets it choose the next model, advances that model's
// counters, durably records the choice and only then hands the model to
// the hardware:
//
//	Preparing   stamp the scan-set, snapshot state, build script bindings
//	Evaluating  run the script (initialization + repetitive on the first cycle)
//	Selecting   read back current_mode and resolve it to a model
//	Committing  global counter, iteration, shuffle order, NextModelRecord
//	Dispatching hand the model to the hardware
//
// The loop is single-threaded: one cycle completes before the next one
// starts, and all counter and routine array mutations happen on the loop
// goroutine. Stop and Status are safe from any goroutine. A stop request
// takes effect between cycles; a running script is never interrupted.
//
// The gateway write is the durability boundary. A crash before it resumes
// from the previous record; after it, resume continues with the newly
// selected model and dispatches it if the hardware never got it. A failed
// write rolls the cycle's in-memory changes back and faults the run.
package engine
