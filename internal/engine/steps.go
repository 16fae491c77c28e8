package engine

// Steps describes, in order, what one cycle does. Shown by the CLI.
func Steps() []string {
	return []string{
		"Stamp the start counter of the current model's scan-set if it is not set.",
		"Run the control script; on the first cycle of a run the initialization script runs first.",
		"Read current_mode and resolve it to a model by index, name or path.",
		"Increment the global counter.",
		"Take the selected model's iteration, mapped through the shuffled scan order if enabled, and advance its counters.",
		"Record the selected model, counters, routine array and script variables durably.",
		"Load the iterator values of the selected iteration and execute the model on the hardware.",
		"Stop if requested, if the cycle limit is reached, or if stop-after-scan applies to the completed scan.",
	}
}
