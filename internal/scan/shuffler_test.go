package scan

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labroutine/internal/ir"
)

func TestOrder_IdentityWhenNotShuffling(t *testing.T) {
	s := NewShuffler(false, 99)
	o := s.Order(0, 0, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, o.Slice())
	assert.False(t, s.Shuffling())
}

func TestOrder_ShuffledIsPermutation(t *testing.T) {
	const n = 20
	o := NewShuffler(true, 7).Order(0, 0, n)

	got := o.Slice()
	require.Len(t, got, n)
	sorted := slices.Clone(got)
	slices.Sort(sorted)
	assert.Equal(t, Identity(n).Slice(), sorted)
}

func TestOrder_DifferentSeedsDiffer(t *testing.T) {
	const n = 20
	a := NewShuffler(true, 1).Order(0, 0, n).Slice()
	b := NewShuffler(true, 2).Order(0, 0, n).Slice()
	assert.NotEqual(t, a, b)
}

func TestOrder_SameSeedReproducible(t *testing.T) {
	a := NewShuffler(true, 42).Order(1, 3, 12).Slice()
	b := NewShuffler(true, 42).Order(1, 3, 12).Slice()
	assert.Equal(t, a, b)
}

func TestOrder_NewPermutationPerScan(t *testing.T) {
	s := NewShuffler(true, 5)
	first := s.Order(0, 0, 20).Slice()
	again := s.Order(0, 0, 20).Slice()
	next := s.Order(0, 1, 20).Slice()

	assert.Equal(t, first, again, "same scan keeps its order")
	assert.NotEqual(t, first, next, "next scan reshuffles")
}

func TestOrder_AllRestarts(t *testing.T) {
	o := NewShuffler(true, 3).Order(0, 0, 6)

	var partial []int
	for idx := range o.All() {
		partial = append(partial, idx)
		if len(partial) == 2 {
			break
		}
	}
	assert.Equal(t, o.Slice()[:2], partial)
	assert.Len(t, o.Slice(), 6)
}

func TestOrder_SmallSizes(t *testing.T) {
	s := NewShuffler(true, 1)
	assert.Empty(t, s.Order(0, 0, 0).Slice())
	assert.Equal(t, []int{0}, s.Order(0, 0, 1).Slice())
}

func TestCombination_LastIteratorFastest(t *testing.T) {
	its := []ir.IteratorVariable{
		{Name: "freq", Values: []float64{10, 20}},
		{Name: "amp", Values: []float64{1, 2, 3}},
	}

	tests := []struct {
		idx  int
		want map[string]float64
	}{
		{0, map[string]float64{"freq": 10, "amp": 1}},
		{1, map[string]float64{"freq": 10, "amp": 2}},
		{3, map[string]float64{"freq": 20, "amp": 1}},
		{5, map[string]float64{"freq": 20, "amp": 3}},
	}
	for _, tt := range tests {
		got, err := Combination(its, tt.idx)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "combination %d", tt.idx)
	}
}

func TestCombination_OutOfRange(t *testing.T) {
	its := []ir.IteratorVariable{{Name: "x", Values: []float64{1, 2}}}
	_, err := Combination(its, 2)
	assert.Error(t, err)
	_, err = Combination(nil, 0)
	assert.Error(t, err)
}
