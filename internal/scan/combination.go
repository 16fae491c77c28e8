package scan

import (
	"fmt"

	"github.com/roach88/labroutine/internal/ir"
)

// Combination returns the iterator values of combination index idx of the
// cartesian product of iterators. The last iterator varies fastest.
func Combination(iterators []ir.IteratorVariable, idx int) (map[string]float64, error) {
	size := 1
	for _, it := range iterators {
		if len(it.Values) == 0 {
			return nil, fmt.Errorf("iterator %q has no values", it.Name)
		}
		size *= len(it.Values)
	}
	if len(iterators) == 0 || idx < 0 || idx >= size {
		return nil, fmt.Errorf("combination %d out of range [0, %d)", idx, size)
	}

	values := make(map[string]float64, len(iterators))
	rest := idx
	for i := len(iterators) - 1; i >= 0; i-- {
		it := iterators[i]
		n := len(it.Values)
		values[it.Name] = it.Values[rest%n]
		rest /= n
	}
	return values, nil
}
