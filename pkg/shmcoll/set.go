package shmcoll

import (
	"iter"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// Set is a fixed-capacity set over a table with zero-byte values.
type Set[K any] struct {
	coll[K, struct{}]
}

// NewSet returns a set view over t, which must have value size 0.
//
// Possible errors: [ordhash.ErrIncompatible], [ordhash.ErrInvalidInput].
func NewSet[K any](t *ordhash.Table, keys Codec[K]) (*Set[K], error) {
	c, err := newColl(t, keys, Empty())
	if err != nil {
		return nil, err
	}

	return &Set[K]{coll: c}, nil
}

// Add inserts k and reports whether it was new.
//
// Possible errors: [ErrFull], [ordhash.ErrInvalidInput].
func (s *Set[K]) Add(k K) (bool, error) {
	return s.insert(k, struct{}{}, true)
}

// Has reports whether k is a member.
func (s *Set[K]) Has(k K) bool {
	return s.find(k).Valid()
}

// Remove deletes k and reports whether it was a member.
func (s *Set[K]) Remove(k K) bool {
	return s.erase(k) > 0
}

// All yields members oldest first.
func (s *Set[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		for kb := range s.t.Ordered() {
			if !yield(s.keys.Decode(kb)) {
				return
			}
		}
	}
}
