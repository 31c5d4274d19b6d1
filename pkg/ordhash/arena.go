package ordhash

import "log/slog"

// Slot arena.
//
// Free slots form a singly linked list through the chain-next field, the same
// field a live slot uses for its bucket chain. A slot is therefore always on
// exactly one of the free list or one bucket chain.

// acquire pops the free-list head. It returns false when the arena is
// exhausted; capacity is fixed and there is no growth.
func (t *Table) acquire() (uint32, bool) {
	slot := t.freeHead()
	if slot == nilIndex {
		return nilIndex, false
	}

	if !t.inRange(slot) || t.isValid(slot) {
		t.violation("acquire", "corrupt free list head", slog.Uint64("slot", uint64(slot)))
		return nilIndex, false
	}

	t.setFreeHead(t.chainNext(slot))
	t.setChainNext(slot, nilIndex)

	return slot, true
}

// release zeroes the slot payload, marks it free and pushes it onto the
// free-list head. The slot must already be unlinked from its bucket chain and
// from the order list.
func (t *Table) release(slot uint32) {
	clear(t.payload(slot))
	t.setSlotU32(slot, slotOffMeta, 0)
	t.setSlotU32(slot, slotOffBucket, nilIndex)
	t.setListPrev(slot, nilIndex)
	t.setListNext(slot, nilIndex)
	t.setChainNext(slot, t.freeHead())
	t.setFreeHead(slot)
}

// occupy writes key and value into an acquired slot and marks it valid.
func (t *Table) occupy(slot uint32, bucket uint32, key, value []byte) {
	copy(t.keyBytes(slot), key)
	copy(t.valueBytes(slot), value)
	t.setSlotU32(slot, slotOffBucket, bucket)
	t.setSlotU32(slot, slotOffMeta, metaValid)
}
