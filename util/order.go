package util

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// OrderedSet keeps distinct values in the order they were first inserted.
type OrderedSet[V constraints.Ordered] struct {
	index  map[V]int
	values []V
}

// NewOrderedSet instantiates a set holding the distinct entries of values.
func NewOrderedSet[V constraints.Ordered](values ...V) *OrderedSet[V] {
	s := &OrderedSet[V]{index: map[V]int{}}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v and reports whether it was not present before.
func (s *OrderedSet[V]) Add(v V) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.values)
	s.values = append(s.values, v)
	return true
}

// Contains reports whether v is in the set.
func (s *OrderedSet[V]) Contains(v V) bool {
	_, ok := s.index[v]
	return ok
}

// Values returns the values in insertion order.
func (s *OrderedSet[V]) Values() []V {
	result := make([]V, len(s.values))
	copy(result, s.values)
	return result
}

// Sorted returns the values in ascending order.
func (s *OrderedSet[V]) Sorted() []V {
	return OrderedSlice(s.values)
}

// Returns the ordered copy of the provided slice, the values are shallow-copied.
func OrderedSlice[V constraints.Ordered](values []V) []V {
	result := make([]V, len(values))
	copy(result, values)
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Convenience function, returning the list of ordered keys of the input map.
func OrderedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return OrderedSlice(keys)
}
