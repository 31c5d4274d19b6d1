// Package shmcoll provides typed views over an [ordhash.Table].
//
// A [Map], [Set] or [MultiMap] holds no data of its own: keys and values are
// encoded with fixed-width [Codec]s straight into the table region, so a view
// over a shared segment sees what every other process wrote. Views share the
// concurrency rules of the underlying table.
package shmcoll

import (
	"errors"
	"fmt"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// ErrFull is returned when an insert finds no free slot.
//
// Recovery: delete or evict entries, or recreate the table with a larger
// capacity.
var ErrFull = errors.New("shmcoll: full")

// Options returns table options sized for the given codecs.
func Options[K, V any](keys Codec[K], values Codec[V], capacity int) ordhash.Options {
	return ordhash.Options{KeySize: keys.Size(), ValueSize: values.Size(), Capacity: capacity}
}

// coll is the codec plumbing shared by every view. Scratch buffers make views
// unsafe for concurrent use, like the table itself.
type coll[K, V any] struct {
	t      *ordhash.Table
	keys   Codec[K]
	values Codec[V]
	kbuf   []byte
	vbuf   []byte
}

func newColl[K, V any](t *ordhash.Table, keys Codec[K], values Codec[V]) (coll[K, V], error) {
	if t == nil {
		return coll[K, V]{}, fmt.Errorf("nil table: %w", ordhash.ErrInvalidInput)
	}

	cfg := t.Config()
	if cfg.KeySize != keys.Size() || cfg.ValueSize != values.Size() {
		return coll[K, V]{}, fmt.Errorf("table stores %d/%d byte keys/values, codecs need %d/%d: %w",
			cfg.KeySize, cfg.ValueSize, keys.Size(), values.Size(), ordhash.ErrIncompatible)
	}

	return coll[K, V]{
		t:      t,
		keys:   keys,
		values: values,
		kbuf:   make([]byte, keys.Size()),
		vbuf:   make([]byte, values.Size()),
	}, nil
}

func (c *coll[K, V]) encodeKey(k K) ([]byte, error) {
	if err := c.keys.Encode(c.kbuf, k); err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}

	return c.kbuf, nil
}

func (c *coll[K, V]) encodeValue(v V) ([]byte, error) {
	if err := c.values.Encode(c.vbuf, v); err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}

	return c.vbuf, nil
}

func (c *coll[K, V]) entry(e ordhash.Entry) (K, V) {
	return c.keys.Decode(e.Key), c.values.Decode(e.Value)
}

// insert stores (k, v) and reports whether a new entry was created.
func (c *coll[K, V]) insert(k K, v V, unique bool) (bool, error) {
	kb, err := c.encodeKey(k)
	if err != nil {
		return false, err
	}

	vb, err := c.encodeValue(v)
	if err != nil {
		return false, err
	}

	var it ordhash.Iter

	var ok bool
	if unique {
		it, ok = c.t.InsertUnique(kb, vb)
	} else {
		it, ok = c.t.InsertEqual(kb, vb)
	}

	if ok {
		return true, nil
	}

	if !it.Valid() {
		return false, ErrFull
	}

	return false, nil
}

func (c *coll[K, V]) find(k K) ordhash.Iter {
	kb, err := c.encodeKey(k)
	if err != nil {
		return c.t.End()
	}

	return c.t.Find(kb)
}

func (c *coll[K, V]) erase(k K) int {
	kb, err := c.encodeKey(k)
	if err != nil {
		return 0
	}

	return c.t.Erase(kb)
}

// Table returns the underlying table.
func (c *coll[K, V]) Table() *ordhash.Table { return c.t }

// Len returns the number of entries.
func (c *coll[K, V]) Len() int { return c.t.Size() }

// Cap returns the fixed capacity.
func (c *coll[K, V]) Cap() int { return c.t.MaxSize() }

// EnableLRU makes lookups promote entries to the newest position.
func (c *coll[K, V]) EnableLRU() { c.t.EnableLRU() }

// DisableLRU stops lookup promotion.
func (c *coll[K, V]) DisableLRU() { c.t.DisableLRU() }

// Clear removes every entry.
func (c *coll[K, V]) Clear() { c.t.Clear() }
