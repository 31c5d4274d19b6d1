package shmcoll

import (
	"iter"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// Map is a fixed-capacity map with unique keys, iterated oldest first.
type Map[K, V any] struct {
	coll[K, V]
}

// NewMap returns a map view over t. The table geometry must match the codec
// sizes.
//
// Possible errors: [ordhash.ErrIncompatible], [ordhash.ErrInvalidInput].
func NewMap[K, V any](t *ordhash.Table, keys Codec[K], values Codec[V]) (*Map[K, V], error) {
	c, err := newColl(t, keys, values)
	if err != nil {
		return nil, err
	}

	return &Map[K, V]{coll: c}, nil
}

// Insert adds k unless it is present. It reports whether an entry was
// created; an existing key is left unchanged.
//
// Possible errors: [ErrFull], [ordhash.ErrInvalidInput] for values the codecs
// reject.
func (m *Map[K, V]) Insert(k K, v V) (bool, error) {
	return m.insert(k, v, true)
}

// Set stores v under k, overwriting in place if k is present.
//
// Possible errors: [ErrFull], [ordhash.ErrInvalidInput].
func (m *Map[K, V]) Set(k K, v V) error {
	vb, err := m.encodeValue(v)
	if err != nil {
		return err
	}

	if it := m.find(k); it.Valid() {
		copy(it.Value(), vb)
		return nil
	}

	_, err = m.insert(k, v, true)

	return err
}

// Get returns the value for k. With LRU enabled a hit is promoted.
func (m *Map[K, V]) Get(k K) (V, bool) {
	it := m.find(k)

	e, ok := it.Entry()
	if !ok {
		var zero V
		return zero, false
	}

	_, v := m.entry(e)

	return v, true
}

// Has reports whether k is present. With LRU enabled a hit is promoted.
func (m *Map[K, V]) Has(k K) bool {
	return m.find(k).Valid()
}

// Delete removes k and reports whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	return m.erase(k) > 0
}

// All yields entries oldest first.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for kb, vb := range m.t.Ordered() {
			if !yield(m.keys.Decode(kb), m.values.Decode(vb)) {
				return
			}
		}
	}
}

// Keys yields keys oldest first.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for kb := range m.t.Ordered() {
			if !yield(m.keys.Decode(kb)) {
				return
			}
		}
	}
}

// Oldest returns the least recently inserted (or, with LRU, least recently
// used) entry.
func (m *Map[K, V]) Oldest() (K, V, bool) {
	if m.t.Empty() {
		var (
			k K
			v V
		)

		return k, v, false
	}

	e, _ := m.t.ListBegin().Entry()
	k, v := m.entry(e)

	return k, v, true
}

// EvictOldest removes and returns the oldest entry.
func (m *Map[K, V]) EvictOldest() (K, V, bool) {
	k, v, ok := m.Oldest()
	if ok {
		m.t.EraseListAt(m.t.ListBegin())
	}

	return k, v, ok
}
