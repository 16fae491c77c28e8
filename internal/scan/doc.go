// Package scan computes the iteration order of a model's scan and maps an
// iteration onto a concrete combination of iterator variable values.
//
// Without shuffling the order is the identity 0..N-1. With shuffling every
// scan gets its own permutation, derived from the routine seed, the model
// index, and the scan number. Deriving rather than storing the permutation
// keeps the order reproducible after a resume: the same (seed, model, scan)
// always yields the same sequence.
package scan
