// Package testutil provides deterministic doubles for engine tests: a
// scripted evaluator, an in-memory gateway with failure injection, a
// recording dispatcher, and fixed time and id sources.
package testutil
