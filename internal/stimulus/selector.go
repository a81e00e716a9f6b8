package stimulus

import (
	"math"
	"math/rand/v2"
)

// Selector supplies the randomness behind the draw functions.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a selector reading from src. A nil src uses the
// runtime's shared random source.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		return &Selector{}
	}
	return &Selector{rng: rand.New(src)}
}

// NewSeededSelector creates a selector with a deterministic PCG stream,
// for reproducible stimulus orders.
func NewSeededSelector(seed uint64) *Selector {
	return NewSelector(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomInt returns a uniformly distributed integer in [min, max], both
// ends inclusive. Swapped bounds are reordered.
func (s *Selector) RandomInt(min, max int) int {
	if max < min {
		min, max = max, min
	}
	// The span is computed in uint64 so ranges wider than MaxInt do not
	// overflow. Adding it back to min wraps into the right int.
	span := uint64(max) - uint64(min)
	if span == math.MaxUint64 {
		return int(s.uint64())
	}
	return min + int(s.uint64n(span+1))
}

func (s *Selector) uint64n(n uint64) uint64 {
	if s == nil || s.rng == nil {
		return rand.Uint64N(n)
	}
	return s.rng.Uint64N(n)
}

func (s *Selector) uint64() uint64 {
	if s == nil || s.rng == nil {
		return rand.Uint64()
	}
	return s.rng.Uint64()
}

func (s *Selector) intn(n int) int {
	if s == nil || s.rng == nil {
		return rand.IntN(n)
	}
	return s.rng.IntN(n)
}

// DrawWithoutReplacement removes a uniformly chosen element from p and
// returns it. It reports false if p is empty.
func DrawWithoutReplacement[T any](s *Selector, p Pool[T]) (T, bool) {
	n := p.Size()
	if n == 0 {
		var zero T
		return zero, false
	}
	return p.Remove(s.RandomInt(0, n-1))
}

// DrawWithReplacement returns a uniformly chosen element of p without
// modifying it. It reports false if p is empty.
func DrawWithReplacement[T any](s *Selector, p Pool[T]) (T, bool) {
	n := p.Size()
	if n == 0 {
		var zero T
		return zero, false
	}
	return p.Peek(s.RandomInt(0, n-1))
}

// DrawSequential returns the element at position index. It reports false
// when p is empty or index is out of range.
func DrawSequential[T any](p Pool[T], index int) (T, bool) {
	return p.Peek(index)
}

// Shuffle permutes items in place with the Fisher-Yates algorithm and
// returns the same slice.
func Shuffle[T any](s *Selector, items []T) []T {
	for i := len(items) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
	return items
}
