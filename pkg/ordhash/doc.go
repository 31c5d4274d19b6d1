// Package ordhash provides a fixed-capacity ordered hash table that lives
// entirely inside a caller-supplied byte region.
//
// Every link inside the table (bucket chains, the free list, the order list)
// is a relative slot index, so the region stays valid wherever it is mapped.
// A region created by one process can be reattached by another process, or
// by the same process after a restart, without rebuilding anything.
//
// # Basic Usage
//
//	region := make([]byte, size) // or an mmap'd shared segment, see package shm
//	t, err := ordhash.Open(region, ordhash.Options{
//	    KeySize:   8,
//	    ValueSize: 16,
//	    Capacity:  1024,
//	    Mode:      ordhash.ModeFormat, // ModeReattach for an existing region
//	})
//	if err != nil {
//	    // handle [ErrCorrupt]/[ErrIncompatible] by formatting again
//	}
//
//	it, inserted := t.InsertUnique(key, value)
//	for k, v := range t.Ordered() {
//	    // oldest first
//	}
//
// # Two Orders
//
// Entries are reachable in hash order ([Table.Begin], [Table.All]) and in
// list order ([Table.ListBegin], [Table.Ordered]). List order is insertion
// order. With [Table.EnableLRU], lookups move matched entries to the list
// tail, so the list head is the least recently used entry. The table never
// evicts by itself.
//
// # Errors and Diagnostics
//
// Lifecycle calls return errors ([ErrCorrupt], [ErrIncompatible],
// [ErrInvalidInput]). Hot-path calls never do: a wrong-sized key, a stale
// iterator or a corrupt link is reported to [Options.Logger] with a call
// stack, and the call returns End, false, zero or nil. A full table is
// reported by the insert's inserted flag.
//
// # Concurrency
//
// None. Callers serialize every mutating call and every lookup while LRU is
// enabled, across goroutines and processes.
package ordhash
