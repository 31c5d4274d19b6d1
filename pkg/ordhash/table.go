package ordhash

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Table is an ordered hash table stored entirely inside a byte region.
//
// The Go value only caches the geometry read from the header. Every mutable
// field (links, counts, the LRU toggle) lives in the region, so two Tables
// attached to the same shared mapping observe each other's changes at once.
//
// Table is not safe for concurrent use. Callers serialize every mutating or
// LRU-promoting call, across goroutines and across processes.
type Table struct {
	_ [0]func() // prevent comparison

	data []byte
	lay  layout
	alg  HashAlg
	hash func([]byte) uint64
	log  *slog.Logger
}

// Config describes the geometry of an attached table.
type Config struct {
	KeySize    int
	ValueSize  int
	Capacity   int
	Hash       HashAlg
	RegionSize int
}

// Config returns the table geometry.
func (t *Table) Config() Config {
	return Config{
		KeySize:    t.lay.keySize,
		ValueSize:  t.lay.valueSize,
		Capacity:   int(t.lay.capacity),
		Hash:       t.alg,
		RegionSize: t.lay.regionSize,
	}
}

// Region returns the backing region. The slice aliases the table memory.
func (t *Table) Region() []byte {
	return t.data
}

// SegmentID returns the identifier stamped into the region by Format.
func (t *Table) SegmentID() uuid.UUID {
	var id uuid.UUID
	copy(id[:], t.data[offSegmentID:offConfigCRC])

	return id
}

// Generation returns the mutation counter. Every insert, erase, promotion,
// clear and swap increments it.
func (t *Table) Generation() uint64 {
	return binary.LittleEndian.Uint64(t.data[offGeneration:])
}

// Size returns the number of live entries.
func (t *Table) Size() int {
	return int(t.liveCount())
}

// Empty reports whether the table holds no entries.
func (t *Table) Empty() bool {
	return t.liveCount() == 0
}

// Full reports whether every slot is in use.
func (t *Table) Full() bool {
	return t.liveCount() >= t.lay.capacity
}

// MaxSize returns the fixed capacity.
func (t *Table) MaxSize() int {
	return int(t.lay.capacity)
}

// LeftSize returns how many more entries fit.
func (t *Table) LeftSize() int {
	return int(t.lay.capacity - min(t.liveCount(), t.lay.capacity))
}

// Clear removes every entry. The LRU toggle is kept.
func (t *Table) Clear() {
	t.resetBody()
	t.bumpGeneration()
}

// resetBody zeroes every slot, threads all slots into the free list in index
// order, empties every bucket and the order list.
func (t *Table) resetBody() {
	clear(t.data[t.lay.slotsOff:t.lay.regionSize])

	for i := range t.lay.capacity {
		t.setSlotU32(i, slotOffSelf, i)
		t.setListPrev(i, nilIndex)
		t.setListNext(i, nilIndex)
		t.setSlotU32(i, slotOffBucket, nilIndex)

		next := i + 1
		if next == t.lay.capacity {
			next = nilIndex
		}

		t.setChainNext(i, next)
		t.setBucketHead(i, nilIndex)
	}

	t.setFreeHead(0)
	t.setListHead(nilIndex)
	t.setListTail(nilIndex)
	t.setLiveCount(0)
}

// Swap exchanges the contents of t and other, including their LRU toggles.
//
// Both tables must share key size, value size, capacity and hash algorithm.
// Segment identifiers stay with their regions. Iterators into either table
// keep their slot index and therefore now refer to the other table's former
// entries.
//
// Possible errors: [ErrIncompatible], [ErrInvalidInput].
func (t *Table) Swap(other *Table) error {
	if other == nil {
		return fmt.Errorf("swap with nil table: %w", ErrInvalidInput)
	}

	if other == t {
		return nil
	}

	if t.lay != other.lay || t.alg != other.alg {
		return fmt.Errorf("swap between tables of different geometry: %w", ErrIncompatible)
	}

	swapBytes(t.data[offFlags:offGeneration], other.data[offFlags:offGeneration])
	swapBytes(t.data[t.lay.slotsOff:t.lay.regionSize], other.data[other.lay.slotsOff:other.lay.regionSize])

	t.bumpGeneration()
	other.bumpGeneration()

	return nil
}

func swapBytes(a, b []byte) {
	for i := range a {
		a[i], b[i] = b[i], a[i]
	}
}

// BucketCount returns the number of buckets, which equals the capacity.
func (t *Table) BucketCount() int {
	return int(t.lay.capacity)
}

// BucketOf returns the bucket a key hashes to, or -1 for a key of the wrong
// size.
func (t *Table) BucketOf(key []byte) int {
	if !t.checkKey("bucket_of", key) {
		return -1
	}

	return int(t.bucketFor(key))
}

// ElemsInBucket returns the chain length of bucket n.
// An out-of-range bucket logs a diagnostic and returns 0.
func (t *Table) ElemsInBucket(n int) int {
	if n < 0 || n >= int(t.lay.capacity) {
		t.violation("elems_in_bucket", "bucket index out of range", slog.Int("bucket", n), slog.Int("buckets", int(t.lay.capacity)))
		return 0
	}

	count := 0

	for slot := t.bucketHead(uint32(n)); slot != nilIndex; slot = t.chainNext(slot) {
		if !t.inRange(slot) || count >= int(t.lay.capacity) {
			t.violation("elems_in_bucket", "corrupt bucket chain", slog.Int("bucket", n))
			break
		}

		count++
	}

	return count
}

func (t *Table) inRange(slot uint32) bool {
	return slot < t.lay.capacity
}
