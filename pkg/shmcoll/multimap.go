package shmcoll

import (
	"iter"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// MultiMap allows several values per key.
type MultiMap[K, V any] struct {
	coll[K, V]
}

// NewMultiMap returns a multimap view over t.
//
// Possible errors: [ordhash.ErrIncompatible], [ordhash.ErrInvalidInput].
func NewMultiMap[K, V any](t *ordhash.Table, keys Codec[K], values Codec[V]) (*MultiMap[K, V], error) {
	c, err := newColl(t, keys, values)
	if err != nil {
		return nil, err
	}

	return &MultiMap[K, V]{coll: c}, nil
}

// Add appends (k, v) even when k is already present.
//
// Possible errors: [ErrFull], [ordhash.ErrInvalidInput].
func (m *MultiMap[K, V]) Add(k K, v V) error {
	_, err := m.insert(k, v, false)
	return err
}

// GetAll returns every value stored under k, newest first.
func (m *MultiMap[K, V]) GetAll(k K) []V {
	kb, err := m.encodeKey(k)
	if err != nil {
		return nil
	}

	matches := m.t.EqualRange(kb)
	if len(matches) == 0 {
		return nil
	}

	out := make([]V, 0, len(matches))
	for _, it := range matches {
		out = append(out, m.values.Decode(it.Value()))
	}

	return out
}

// Count returns how many values are stored under k.
func (m *MultiMap[K, V]) Count(k K) int {
	kb, err := m.encodeKey(k)
	if err != nil {
		return 0
	}

	return m.t.Count(kb)
}

// Delete removes every value under k and returns how many were removed.
func (m *MultiMap[K, V]) Delete(k K) int {
	return m.erase(k)
}

// All yields every pair oldest first.
func (m *MultiMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for kb, vb := range m.t.Ordered() {
			if !yield(m.keys.Decode(kb), m.values.Decode(vb)) {
				return
			}
		}
	}
}
