package scan

import (
	"iter"
	"math/rand/v2"
	"sync"
)

// Order is a restartable sequence of iteration indices for one scan.
type Order struct {
	perm []int // nil means identity
	size int
}

// Len returns the number of iterations in the scan.
func (o Order) Len() int {
	return o.size
}

// At returns the combination index for the i-th (0-based) iteration.
func (o Order) At(i int) int {
	if o.perm == nil {
		return i
	}
	return o.perm[i]
}

// All yields the combination indices in scan order. Each call restarts
// from the beginning.
func (o Order) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; i < o.size; i++ {
			if !yield(o.At(i)) {
				return
			}
		}
	}
}

// Slice materializes the order.
func (o Order) Slice() []int {
	out := make([]int, 0, o.size)
	for idx := range o.All() {
		out = append(out, idx)
	}
	return out
}

// Identity returns the non-shuffled order of size n.
func Identity(n int) Order {
	return Order{size: n}
}

// Permutation returns the shuffled order of size n for one scan.
func Permutation(n int, seed uint64, model, scanNumber int) Order {
	stream := uint64(uint32(model))<<32 | uint64(uint32(scanNumber))
	r := rand.New(rand.NewPCG(seed, stream))
	return Order{perm: r.Perm(n), size: n}
}

type orderKey struct {
	model int
	scan  int
}

// Shuffler hands out scan orders, generating each shuffled permutation
// once per scan and caching it.
//
// Thread-safety: Order is safe for concurrent use.
type Shuffler struct {
	shuffle bool
	seed    uint64

	mu    sync.Mutex
	cache map[orderKey]Order
}

// NewShuffler creates a shuffler. When shuffle is false every order is
// the identity and seed is ignored.
func NewShuffler(shuffle bool, seed uint64) *Shuffler {
	return &Shuffler{
		shuffle: shuffle,
		seed:    seed,
		cache:   make(map[orderKey]Order),
	}
}

// Shuffling reports whether orders are randomized.
func (s *Shuffler) Shuffling() bool {
	return s.shuffle
}

// Order returns the iteration order for scan number scanNumber (0-based,
// i.e. the model's CompletedScans) of a model with the given scan size.
func (s *Shuffler) Order(model, scanNumber, size int) Order {
	if !s.shuffle || size <= 1 {
		return Identity(size)
	}

	key := orderKey{model: model, scan: scanNumber}

	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.cache[key]; ok && o.size == size {
		return o
	}
	// Only the current scan of each model is needed.
	for k := range s.cache {
		if k.model == model {
			delete(s.cache, k)
		}
	}
	o := Permutation(size, s.seed, model, scanNumber)
	s.cache[key] = o
	return o
}
