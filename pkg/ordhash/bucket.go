package ordhash

import (
	"bytes"
	"iter"
	"log/slog"
)

// bucketFor maps a key to its bucket: hash(key) mod capacity.
func (t *Table) bucketFor(key []byte) uint32 {
	return uint32(t.hash(key) % uint64(t.lay.capacity))
}

func (t *Table) checkKey(op string, key []byte) bool {
	if len(key) != t.lay.keySize {
		t.violation(op, "key size mismatch", slog.Int("got", len(key)), slog.Int("want", t.lay.keySize))
		return false
	}

	return true
}

func (t *Table) checkValue(op string, value []byte) bool {
	if len(value) != t.lay.valueSize {
		t.violation(op, "value size mismatch", slog.Int("got", len(value)), slog.Int("want", t.lay.valueSize))
		return false
	}

	return true
}

// walkChain calls fn for every slot of bucket b until fn returns false.
// fn may promote slots but must not relink the chain. A chain that leaves the
// slot range or runs longer than the capacity is reported and cut short.
func (t *Table) walkChain(op string, b uint32, fn func(slot uint32) bool) {
	steps := uint32(0)

	for slot := t.bucketHead(b); slot != nilIndex; slot = t.chainNext(slot) {
		if !t.inRange(slot) || steps >= t.lay.capacity {
			t.violation(op, "corrupt bucket chain", slog.Uint64("bucket", uint64(b)), slog.Uint64("slot", uint64(slot)))
			return
		}

		if !fn(slot) {
			return
		}

		steps++
	}
}

// findSlot returns the first slot in key's chain holding key, or nilIndex.
func (t *Table) findSlot(op string, b uint32, key []byte) uint32 {
	found := nilIndex

	t.walkChain(op, b, func(slot uint32) bool {
		if bytes.Equal(t.keyBytes(slot), key) {
			found = slot
			return false
		}

		return true
	})

	return found
}

func (t *Table) insert(op string, key, value []byte, unique bool) (Iter, bool) {
	if !t.checkKey(op, key) || !t.checkValue(op, value) {
		return t.End(), false
	}

	b := t.bucketFor(key)

	if unique {
		if slot := t.findSlot(op, b, key); slot != nilIndex {
			return Iter{t: t, slot: slot}, false
		}
	}

	slot, ok := t.acquire()
	if !ok {
		return t.End(), false
	}

	t.occupy(slot, b, key, value)
	t.setChainNext(slot, t.bucketHead(b))
	t.setBucketHead(b, slot)
	t.appendTail(slot)
	t.setLiveCount(t.liveCount() + 1)
	t.bumpGeneration()

	return Iter{t: t, slot: slot}, true
}

// InsertUnique inserts key with value unless an equal key is present.
//
// On a duplicate it returns the existing entry and false. When the arena is
// exhausted, or key/value have the wrong size, it returns [Table.End] and
// false. A new entry becomes the head of its bucket chain and the tail of
// the order list.
func (t *Table) InsertUnique(key, value []byte) (Iter, bool) {
	return t.insert("insert_unique", key, value, true)
}

// InsertEqual inserts key with value even if equal keys are present.
//
// Duplicates are prepended to their bucket chain, so chain order among them
// is newest first while the order list keeps strict insertion order.
func (t *Table) InsertEqual(key, value []byte) (Iter, bool) {
	return t.insert("insert_equal", key, value, false)
}

// InsertUniqueAll calls InsertUnique for every pair and returns how many were
// inserted. It keeps going after a failed insert.
func (t *Table) InsertUniqueAll(entries iter.Seq2[[]byte, []byte]) int {
	inserted := 0

	for key, value := range entries {
		if _, ok := t.insert("insert_unique_all", key, value, true); ok {
			inserted++
		}
	}

	return inserted
}

// InsertEqualAll calls InsertEqual for every pair and returns how many were
// inserted.
func (t *Table) InsertEqualAll(entries iter.Seq2[[]byte, []byte]) int {
	inserted := 0

	for key, value := range entries {
		if _, ok := t.insert("insert_equal_all", key, value, false); ok {
			inserted++
		}
	}

	return inserted
}

// Erase removes every entry equal to key and returns how many were removed.
// Erasing an absent key returns 0 and changes nothing.
func (t *Table) Erase(key []byte) int {
	if !t.checkKey("erase", key) {
		return 0
	}

	b := t.bucketFor(key)
	prev := nilIndex
	removed := 0
	steps := uint32(0)

	for slot := t.bucketHead(b); slot != nilIndex; steps++ {
		if !t.inRange(slot) || steps >= t.lay.capacity {
			t.violation("erase", "corrupt bucket chain", slog.Uint64("bucket", uint64(b)), slog.Uint64("slot", uint64(slot)))
			break
		}

		next := t.chainNext(slot)

		if bytes.Equal(t.keyBytes(slot), key) {
			if prev == nilIndex {
				t.setBucketHead(b, next)
			} else {
				t.setChainNext(prev, next)
			}

			t.drop(slot)
			removed++
		} else {
			prev = slot
		}

		slot = next
	}

	if removed > 0 {
		t.bumpGeneration()
	}

	return removed
}

// drop removes an already chain-unlinked slot from the order list and
// returns it to the arena.
func (t *Table) drop(slot uint32) {
	t.unlink(slot)
	t.release(slot)
	t.setLiveCount(t.liveCount() - 1)
}

// unlinkChain removes slot from its bucket chain.
func (t *Table) unlinkChain(op string, slot uint32) bool {
	b := t.slotBucket(slot)
	if b >= t.lay.capacity {
		t.violation(op, "slot bucket out of range", slog.Uint64("slot", uint64(slot)), slog.Uint64("bucket", uint64(b)))
		return false
	}

	prev := nilIndex
	found := false

	t.walkChain(op, b, func(cur uint32) bool {
		if cur == slot {
			found = true
			return false
		}

		prev = cur

		return true
	})

	if !found {
		t.violation(op, "slot missing from its bucket chain", slog.Uint64("slot", uint64(slot)), slog.Uint64("bucket", uint64(b)))
		return false
	}

	if prev == nilIndex {
		t.setBucketHead(b, t.chainNext(slot))
	} else {
		t.setChainNext(prev, t.chainNext(slot))
	}

	return true
}

// removeSlot erases a single live slot.
func (t *Table) removeSlot(op string, slot uint32) bool {
	if !t.unlinkChain(op, slot) {
		return false
	}

	t.drop(slot)
	t.bumpGeneration()

	return true
}

// EraseAt erases the entry it refers to and returns the next entry in hash
// order. An invalid iterator logs a diagnostic and returns [Table.End].
func (t *Table) EraseAt(it Iter) Iter {
	if !t.owns("erase_at", it.t, it.slot) {
		return t.End()
	}

	next := it.advance()
	if !t.removeSlot("erase_at", it.slot) {
		return t.End()
	}

	return next
}

// EraseListAt erases the entry it refers to and returns the next entry in
// list order. An invalid iterator logs a diagnostic and returns
// [Table.ListEnd].
func (t *Table) EraseListAt(it ListIter) ListIter {
	if !t.owns("erase_list_at", it.t, it.slot) {
		return t.ListEnd()
	}

	next := t.listNext(it.slot)
	if !t.removeSlot("erase_list_at", it.slot) {
		return t.ListEnd()
	}

	return ListIter{t: t, slot: next}
}

// EraseRange erases [first, last) in hash order and returns last. If last is
// not reachable from first, erasing stops at the end of the table.
func (t *Table) EraseRange(first, last Iter) Iter {
	it := first
	for it != last && it.slot != nilIndex {
		if !t.owns("erase_range", it.t, it.slot) {
			return t.End()
		}

		it = t.EraseAt(it)
	}

	return it
}

// EraseListRange erases [first, last) in list order and returns last.
func (t *Table) EraseListRange(first, last ListIter) ListIter {
	it := first
	for it != last && it.slot != nilIndex {
		if !t.owns("erase_list_range", it.t, it.slot) {
			return t.ListEnd()
		}

		it = t.EraseListAt(it)
	}

	return it
}

// owns reports whether (owner, slot) names a live entry of t.
func (t *Table) owns(op string, owner *Table, slot uint32) bool {
	switch {
	case owner != t:
		t.violation(op, "iterator belongs to another table")
		return false
	case slot == nilIndex:
		t.violation(op, "end iterator used as an entry")
		return false
	case !t.inRange(slot):
		t.violation(op, "iterator slot out of range", slog.Uint64("slot", uint64(slot)))
		return false
	case !t.isValid(slot):
		t.violation(op, "stale iterator", slog.Uint64("slot", uint64(slot)))
		return false
	}

	return true
}

// Find returns the entry for key, or [Table.End] when absent. With LRU
// enabled the entry is promoted to the order-list tail before returning.
func (t *Table) Find(key []byte) Iter {
	if !t.checkKey("find", key) {
		return t.End()
	}

	slot := t.findSlot("find", t.bucketFor(key), key)
	if slot == nilIndex {
		return t.End()
	}

	t.touch(slot)

	return Iter{t: t, slot: slot}
}

// Count returns how many entries equal key. With LRU enabled every match is
// promoted, in chain order, so the matches end up at the tail.
func (t *Table) Count(key []byte) int {
	if !t.checkKey("count", key) {
		return 0
	}

	n := 0

	t.walkChain("count", t.bucketFor(key), func(slot uint32) bool {
		if bytes.Equal(t.keyBytes(slot), key) {
			t.touch(slot)
			n++
		}

		return true
	})

	return n
}

// EqualRange returns an iterator for every entry equal to key, in chain
// order. Duplicates are not contiguous within a chain, so the matches are
// returned as a slice rather than a [first, last) pair. With LRU enabled every
// match is promoted in the same order.
func (t *Table) EqualRange(key []byte) []Iter {
	if !t.checkKey("equal_range", key) {
		return nil
	}

	var matches []Iter

	t.walkChain("equal_range", t.bucketFor(key), func(slot uint32) bool {
		if bytes.Equal(t.keyBytes(slot), key) {
			t.touch(slot)
			matches = append(matches, Iter{t: t, slot: slot})
		}

		return true
	})

	return matches
}

// At returns the value stored for key. The slice aliases the region; writes
// through it update the entry in place. A missing key logs a diagnostic and
// returns nil, false.
func (t *Table) At(key []byte) ([]byte, bool) {
	it := t.Find(key)
	if it.slot == nilIndex {
		if len(key) == t.lay.keySize {
			t.violation("at", "key not found")
		}

		return nil, false
	}

	return t.valueBytes(it.slot), true
}
