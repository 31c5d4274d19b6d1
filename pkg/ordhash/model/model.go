// Package model provides a deliberately simple, in-memory model of ordhash's
// observable behavior.
//
// The model is easy to audit: a slice in list order, linear scans, no
// buckets. Tests drive it and a real table with the same operations and
// compare sizes, list order and lookup results.
package model

import (
	"slices"
)

// Entry is one live entry. Seq is the insertion sequence number; among equal
// keys the newest insert is found first, matching bucket-chain prepending.
type Entry struct {
	Key   string
	Value string
	Seq   uint64
}

// Table models an ordered hash table of fixed capacity.
type Table struct {
	Capacity int
	LRU      bool
	Entries  []Entry // list order, oldest first
	NextSeq  uint64
}

// New returns an empty model.
func New(capacity int) *Table {
	return &Table{Capacity: capacity}
}

// Clone makes a deep copy so tests can fork the same state.
func (m *Table) Clone() *Table {
	c := *m
	c.Entries = slices.Clone(m.Entries)

	return &c
}

// Len returns the number of entries.
func (m *Table) Len() int {
	return len(m.Entries)
}

// Full reports whether every slot is in use.
func (m *Table) Full() bool {
	return len(m.Entries) >= m.Capacity
}

func (m *Table) insert(key, value []byte) bool {
	if m.Full() {
		return false
	}

	m.Entries = append(m.Entries, Entry{Key: string(key), Value: string(value), Seq: m.NextSeq})
	m.NextSeq++

	return true
}

// InsertUnique appends key unless present or full.
func (m *Table) InsertUnique(key, value []byte) bool {
	if m.indexOfNewest(string(key)) >= 0 {
		return false
	}

	return m.insert(key, value)
}

// InsertEqual appends key unless full.
func (m *Table) InsertEqual(key, value []byte) bool {
	return m.insert(key, value)
}

// Erase removes every entry with key.
func (m *Table) Erase(key []byte) int {
	before := len(m.Entries)
	m.Entries = slices.DeleteFunc(m.Entries, func(e Entry) bool {
		return e.Key == string(key)
	})

	return before - len(m.Entries)
}

// EraseOldest removes the list head.
func (m *Table) EraseOldest() bool {
	if len(m.Entries) == 0 {
		return false
	}

	m.Entries = slices.Delete(m.Entries, 0, 1)

	return true
}

// Find returns the value of the newest entry with key, promoting it when
// LRU is on.
func (m *Table) Find(key []byte) (string, bool) {
	i := m.indexOfNewest(string(key))
	if i < 0 {
		return "", false
	}

	e := m.Entries[i]
	if m.LRU {
		m.promote(i)
	}

	return e.Value, true
}

// Count returns how many entries have key. With LRU on, matches move to the
// tail newest first, the order a bucket chain visits them.
func (m *Table) Count(key []byte) int {
	return len(m.EqualRange(key))
}

// EqualRange returns the values stored under key, newest first. With LRU on,
// the matches move to the tail in that order, so the oldest ends up last.
func (m *Table) EqualRange(key []byte) []string {
	var matches []Entry

	for _, e := range m.Entries {
		if e.Key == string(key) {
			matches = append(matches, e)
		}
	}

	slices.SortFunc(matches, func(a, b Entry) int {
		switch {
		case a.Seq > b.Seq:
			return -1
		case a.Seq < b.Seq:
			return 1
		default:
			return 0
		}
	})

	if m.LRU && len(matches) > 0 {
		rest := slices.DeleteFunc(slices.Clone(m.Entries), func(e Entry) bool {
			return e.Key == string(key)
		})
		m.Entries = append(rest, matches...)
	}

	values := make([]string, len(matches))
	for i, e := range matches {
		values[i] = e.Value
	}

	return values
}

// Clear removes everything. The LRU toggle is kept.
func (m *Table) Clear() {
	m.Entries = nil
}

// Keys returns keys in list order.
func (m *Table) Keys() []string {
	keys := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		keys = append(keys, e.Key)
	}

	return keys
}

func (m *Table) indexOfNewest(key string) int {
	best := -1

	for i, e := range m.Entries {
		if e.Key == key && (best < 0 || e.Seq > m.Entries[best].Seq) {
			best = i
		}
	}

	return best
}

func (m *Table) promote(i int) {
	e := m.Entries[i]
	m.Entries = append(slices.Delete(m.Entries, i, i+1), e)
}
