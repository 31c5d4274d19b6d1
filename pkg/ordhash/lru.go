package ordhash

// EnableLRU turns on promotion: successful lookups move the entries they
// match to the order-list tail. The toggle is stored in the region and
// survives Reattach.
//
// The table never evicts on its own. To bound a cache, erase from
// [Table.ListBegin] when [Table.Full] reports true.
func (t *Table) EnableLRU() {
	t.setFlags(t.flags() | flagLRU)
}

// DisableLRU turns promotion off. The current order is kept.
func (t *Table) DisableLRU() {
	t.setFlags(t.flags() &^ flagLRU)
}

// LRUEnabled reports whether lookups promote entries.
func (t *Table) LRUEnabled() bool {
	return t.flags()&flagLRU != 0
}

// touch promotes slot when LRU is enabled.
func (t *Table) touch(slot uint32) {
	if t.LRUEnabled() {
		t.promoteToTail(slot)
	}
}
