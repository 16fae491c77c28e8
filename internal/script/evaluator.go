package script

import "context"

// Bindings maps script variable names to values. Values are one of
// int64, float64, bool, string, []string or []float64.
type Bindings map[string]any

// Clone returns a copy of the bindings. Slices are copied.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		switch val := v.(type) {
		case []float64:
			out[k] = append([]float64(nil), val...)
		case []string:
			out[k] = append([]string(nil), val...)
		default:
			out[k] = v
		}
	}
	return out
}

// Evaluator runs a script against a set of variable bindings and returns
// the bindings as they are after the script ran, including any variables
// the script defined. Failures are reported as *RuntimeError.
//
// Evaluate blocks until the script finishes. Implementations are not
// required to honor cancellation of ctx once the script started.
type Evaluator interface {
	Evaluate(ctx context.Context, src string, in Bindings) (Bindings, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, src string, in Bindings) (Bindings, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, src string, in Bindings) (Bindings, error) {
	return f(ctx, src, in)
}
