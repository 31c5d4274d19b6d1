package ordhash

import (
	"iter"
	"log/slog"
)

// Entry is a key/value pair. Both slices alias the region: they are only
// meaningful while the entry is live, and writes through Value update the
// stored value in place.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iter walks entries in hash order: each bucket chain to exhaustion, then the
// next non-empty bucket. The order carries no meaning beyond that.
//
// An Iter is a slot index plus its table. It stays valid while other entries
// are inserted or erased, and compares with ==. The zero Iter and
// [Table.End] are not valid.
type Iter struct {
	t    *Table
	slot uint32
}

// ListIter walks entries in order-list order: insertion order, or recency
// order once LRU promotion has happened.
type ListIter struct {
	t    *Table
	slot uint32
}

// Begin returns the first entry in hash order, or End when empty.
func (t *Table) Begin() Iter {
	return Iter{t: t, slot: t.firstFrom(0)}
}

// End returns the past-the-end hash-order iterator.
func (t *Table) End() Iter {
	return Iter{t: t, slot: nilIndex}
}

// ListBegin returns the oldest (least recently used) entry, or ListEnd.
func (t *Table) ListBegin() ListIter {
	return ListIter{t: t, slot: t.listHead()}
}

// ListEnd returns the past-the-end list-order iterator.
func (t *Table) ListEnd() ListIter {
	return ListIter{t: t, slot: nilIndex}
}

// ListLast returns the newest (most recently used) entry, or ListEnd.
func (t *Table) ListLast() ListIter {
	return ListIter{t: t, slot: t.listTail()}
}

// firstFrom returns the head of the first non-empty bucket at or after b.
func (t *Table) firstFrom(b uint32) uint32 {
	for ; b < t.lay.capacity; b++ {
		if head := t.bucketHead(b); head != nilIndex {
			return head
		}
	}

	return nilIndex
}

func (t *Table) live(slot uint32) bool {
	return slot != nilIndex && t.inRange(slot) && t.isValid(slot)
}

// Valid reports whether it refers to a live entry.
func (it Iter) Valid() bool {
	return it.t != nil && it.t.live(it.slot)
}

// Slot returns the slot index, or -1 for an end iterator.
func (it Iter) Slot() int {
	if it.slot == nilIndex {
		return -1
	}

	return int(it.slot)
}

// Next returns the following entry in hash order. Advancing an iterator that
// is not valid logs a diagnostic and returns End.
func (it Iter) Next() Iter {
	if !it.Valid() {
		it.report("iter_next", "advance of invalid iterator")
		return Iter{t: it.t, slot: nilIndex}
	}

	return it.advance()
}

// advance assumes it is valid.
func (it Iter) advance() Iter {
	t := it.t

	if next := t.chainNext(it.slot); next != nilIndex {
		if !t.inRange(next) {
			t.violation("iter_next", "corrupt bucket chain", slog.Uint64("slot", uint64(it.slot)))
			return t.End()
		}

		return Iter{t: t, slot: next}
	}

	b := t.slotBucket(it.slot)
	if b >= t.lay.capacity {
		t.violation("iter_next", "slot bucket out of range", slog.Uint64("slot", uint64(it.slot)))
		return t.End()
	}

	return Iter{t: t, slot: t.firstFrom(b + 1)}
}

// Entry returns the entry it refers to. An invalid iterator logs a
// diagnostic and returns false.
func (it Iter) Entry() (Entry, bool) {
	if !it.Valid() {
		it.report("iter_entry", "dereference of invalid iterator")
		return Entry{}, false
	}

	return Entry{Key: it.t.keyBytes(it.slot), Value: it.t.valueBytes(it.slot)}, true
}

// Key returns the entry key, or nil for an invalid iterator.
func (it Iter) Key() []byte {
	e, _ := it.Entry()
	return e.Key
}

// Value returns the entry value, or nil for an invalid iterator.
func (it Iter) Value() []byte {
	e, _ := it.Entry()
	return e.Value
}

// List converts it to a list-order iterator at the same entry.
func (it Iter) List() ListIter {
	return ListIter(it)
}

func (it Iter) report(op, msg string) {
	if it.t != nil {
		it.t.violation(op, msg, slog.Int("slot", it.Slot()))
	}
}

// Valid reports whether it refers to a live entry.
func (it ListIter) Valid() bool {
	return it.t != nil && it.t.live(it.slot)
}

// Slot returns the slot index, or -1 for an end iterator.
func (it ListIter) Slot() int {
	return Iter(it).Slot()
}

// Next returns the following (newer) entry in list order.
func (it ListIter) Next() ListIter {
	if !it.Valid() {
		Iter(it).report("list_iter_next", "advance of invalid iterator")
		return ListIter{t: it.t, slot: nilIndex}
	}

	return ListIter{t: it.t, slot: it.t.listNext(it.slot)}
}

// Prev returns the preceding (older) entry in list order. Prev of ListEnd is
// the tail.
func (it ListIter) Prev() ListIter {
	if it.t != nil && it.slot == nilIndex {
		return it.t.ListLast()
	}

	if !it.Valid() {
		Iter(it).report("list_iter_prev", "retreat of invalid iterator")
		return ListIter{t: it.t, slot: nilIndex}
	}

	return ListIter{t: it.t, slot: it.t.listPrev(it.slot)}
}

// Entry returns the entry it refers to. An invalid iterator logs a
// diagnostic and returns false.
func (it ListIter) Entry() (Entry, bool) {
	if !it.Valid() {
		Iter(it).report("list_iter_entry", "dereference of invalid iterator")
		return Entry{}, false
	}

	return Entry{Key: it.t.keyBytes(it.slot), Value: it.t.valueBytes(it.slot)}, true
}

// Key returns the entry key, or nil for an invalid iterator.
func (it ListIter) Key() []byte {
	e, _ := it.Entry()
	return e.Key
}

// Value returns the entry value, or nil for an invalid iterator.
func (it ListIter) Value() []byte {
	e, _ := it.Entry()
	return e.Value
}

// Hash converts it to a hash-order iterator at the same entry.
func (it ListIter) Hash() Iter {
	return Iter(it)
}

// All yields every entry in hash order. The table must not be modified
// during iteration; yielded slices alias the region.
func (t *Table) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		steps := uint32(0)

		for it := t.Begin(); it.slot != nilIndex; it = it.advance() {
			if steps >= t.lay.capacity {
				t.violation("all", "hash traversal exceeds capacity")
				return
			}

			if !yield(t.keyBytes(it.slot), t.valueBytes(it.slot)) {
				return
			}

			steps++
		}
	}
}

// Ordered yields every entry from oldest to newest. The table must not be
// modified during iteration.
func (t *Table) Ordered() iter.Seq2[[]byte, []byte] {
	return t.walkList("ordered", true)
}

// Backward yields every entry from newest to oldest.
func (t *Table) Backward() iter.Seq2[[]byte, []byte] {
	return t.walkList("backward", false)
}

func (t *Table) walkList(op string, forward bool) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		start, step := t.listHead(), t.listNext
		if !forward {
			start, step = t.listTail(), t.listPrev
		}

		steps := uint32(0)

		for slot := start; slot != nilIndex; slot = step(slot) {
			if !t.inRange(slot) || steps >= t.lay.capacity {
				t.violation(op, "corrupt order list", slog.Uint64("slot", uint64(slot)))
				return
			}

			if !yield(t.keyBytes(slot), t.valueBytes(slot)) {
				return
			}

			steps++
		}
	}
}
