package stimulus

import "slices"

// Pool is the storage behind the selection functions. Positions are
// zero-based and follow the pool's own order.
type Pool[T any] interface {
	// Size returns the number of elements currently in the pool.
	Size() int

	// Peek returns the element at position i without removing it.
	Peek(i int) (T, bool)

	// Remove deletes the element at position i and returns it.
	Remove(i int) (T, bool)
}

var (
	_ Pool[int] = (*Sequence[int])(nil)
	_ Pool[int] = (*Keyed[int])(nil)
)

// Sequence is an ordered pool. Removal keeps the remaining elements in
// their original order.
type Sequence[T any] struct {
	items []T
}

// NewSequence creates a sequence holding a copy of items.
func NewSequence[T any](items ...T) *Sequence[T] {
	return &Sequence[T]{items: slices.Clone(items)}
}

// FromSlice creates a sequence that takes ownership of items. The caller
// must not use items afterwards.
func FromSlice[T any](items []T) *Sequence[T] {
	return &Sequence[T]{items: items}
}

func (s *Sequence[T]) Size() int { return len(s.items) }

func (s *Sequence[T]) Peek(i int) (T, bool) {
	if i < 0 || i >= len(s.items) {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

func (s *Sequence[T]) Remove(i int) (T, bool) {
	v, ok := s.Peek(i)
	if !ok {
		return v, false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return v, true
}

// Append adds items to the end of the sequence.
func (s *Sequence[T]) Append(items ...T) {
	s.items = append(s.items, items...)
}

// Items returns the current contents. The slice aliases the pool storage.
func (s *Sequence[T]) Items() []T {
	return s.items
}

// Keyed is a pool of string-keyed values enumerated in key insertion order.
// Overwriting an existing key keeps its position.
type Keyed[T any] struct {
	keys   []string
	values map[string]T
}

// NewKeyed creates an empty keyed pool.
func NewKeyed[T any]() *Keyed[T] {
	return &Keyed[T]{values: make(map[string]T)}
}

// Set stores v under key.
func (k *Keyed[T]) Set(key string, v T) {
	if _, ok := k.values[key]; !ok {
		k.keys = append(k.keys, key)
	}
	k.values[key] = v
}

// Get returns the value stored under key.
func (k *Keyed[T]) Get(key string) (T, bool) {
	v, ok := k.values[key]
	return v, ok
}

// Delete removes key and reports whether it was present.
func (k *Keyed[T]) Delete(key string) bool {
	if _, ok := k.values[key]; !ok {
		return false
	}
	delete(k.values, key)
	k.keys = slices.DeleteFunc(k.keys, func(s string) bool { return s == key })
	return true
}

// Keys returns a copy of the keys in insertion order.
func (k *Keyed[T]) Keys() []string {
	return slices.Clone(k.keys)
}

func (k *Keyed[T]) Size() int { return len(k.keys) }

func (k *Keyed[T]) Peek(i int) (T, bool) {
	if i < 0 || i >= len(k.keys) {
		var zero T
		return zero, false
	}
	return k.values[k.keys[i]], true
}

func (k *Keyed[T]) Remove(i int) (T, bool) {
	if i < 0 || i >= len(k.keys) {
		var zero T
		return zero, false
	}
	key := k.keys[i]
	v := k.values[key]
	delete(k.values, key)
	k.keys = slices.Delete(k.keys, i, i+1)
	return v, true
}
