package ordhash

// Order list.
//
// Every valid slot is linked exactly once through its prev/next fields. The
// table-level head and tail live in the header. A slot moves Free -> Linked on
// insert, may be reordered any number of times by promotion, and goes back to
// Free on erase.

// appendTail links slot as the new tail. Called once, at insertion.
func (t *Table) appendTail(slot uint32) {
	tail := t.listTail()

	t.setListPrev(slot, tail)
	t.setListNext(slot, nilIndex)

	if tail == nilIndex {
		t.setListHead(slot)
	} else {
		t.setListNext(tail, slot)
	}

	t.setListTail(slot)
}

// unlink splices slot out of the list. Called once, at erasure, before the
// slot is released.
func (t *Table) unlink(slot uint32) {
	prev := t.listPrev(slot)
	next := t.listNext(slot)

	if prev == nilIndex {
		t.setListHead(next)
	} else {
		t.setListNext(prev, next)
	}

	if next == nilIndex {
		t.setListTail(prev)
	} else {
		t.setListPrev(next, prev)
	}

	t.setListPrev(slot, nilIndex)
	t.setListNext(slot, nilIndex)
}

// promoteToTail moves slot to the tail. It is the only reordering operation.
func (t *Table) promoteToTail(slot uint32) {
	if t.listTail() == slot {
		return
	}

	t.unlink(slot)
	t.appendTail(slot)
	t.bumpGeneration()
}
