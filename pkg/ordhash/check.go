package ordhash

import (
	"errors"
	"fmt"
)

// maxCheckFindings bounds how many problems Check reports.
const maxCheckFindings = 16

// Slot membership marks used by Check.
const (
	inChain uint8 = 1 << iota
	inFree
	inList
)

type checker struct {
	t        *Table
	marks    []uint8
	findings []error
}

func (c *checker) fail(format string, args ...any) bool {
	if len(c.findings) < maxCheckFindings {
		c.findings = append(c.findings, fmt.Errorf(format+": %w", append(args, ErrCorrupt)...))
	}

	return len(c.findings) < maxCheckFindings
}

// Check validates every structural invariant of the table:
//   - each slot records its own index
//   - every valid slot sits in exactly one chain, the one its key hashes to
//   - every free slot sits on the free list exactly once
//   - the order list holds exactly the valid slots, its prev and next links
//     agree, and forward and backward walks both match the live count
//
// Check is a diagnostic. It reads the whole region and is never called by
// the hot path.
//
// Possible errors: [ErrCorrupt] (joined, one per finding).
func (t *Table) Check() error {
	if err := t.validateCounters(); err != nil {
		return err
	}

	c := &checker{t: t, marks: make([]uint8, t.lay.capacity)}

	if c.checkSlots() && c.checkChains() && c.checkFreeList() && c.checkListForward() {
		c.checkListBackward()
	}

	return errors.Join(c.findings...)
}

func (c *checker) checkSlots() bool {
	t := c.t

	for i := range t.lay.capacity {
		if self := t.slotU32(i, slotOffSelf); self != i {
			if !c.fail("slot %d records index %d", i, self) {
				return false
			}
		}

		if !t.isValid(i) {
			continue
		}

		if want := t.bucketFor(t.keyBytes(i)); t.slotBucket(i) != want {
			if !c.fail("slot %d cached bucket %d, key hashes to %d", i, t.slotBucket(i), want) {
				return false
			}
		}
	}

	return true
}

func (c *checker) checkChains() bool {
	t := c.t
	total := uint32(0)

	for b := range t.lay.capacity {
		steps := uint32(0)

		for slot := t.bucketHead(b); slot != nilIndex; slot = t.chainNext(slot) {
			switch {
			case !t.inRange(slot):
				return c.fail("bucket %d links to out-of-range slot %d", b, slot)
			case steps > t.lay.capacity:
				return c.fail("bucket %d chain does not terminate", b)
			case c.marks[slot]&inChain != 0:
				return c.fail("slot %d appears in more than one chain position", slot)
			case !t.isValid(slot):
				if !c.fail("bucket %d chain holds free slot %d", b, slot) {
					return false
				}
			case t.slotBucket(slot) != b:
				if !c.fail("slot %d in bucket %d chain records bucket %d", slot, b, t.slotBucket(slot)) {
					return false
				}
			}

			c.marks[slot] |= inChain
			total++
			steps++
		}
	}

	if total != t.liveCount() {
		return c.fail("chains hold %d slots, live count is %d", total, t.liveCount())
	}

	return true
}

func (c *checker) checkFreeList() bool {
	t := c.t
	count := uint32(0)

	for slot := t.freeHead(); slot != nilIndex; slot = t.chainNext(slot) {
		switch {
		case !t.inRange(slot):
			return c.fail("free list links to out-of-range slot %d", slot)
		case c.marks[slot]&(inFree|inChain) != 0:
			return c.fail("free slot %d reached twice or also in a chain", slot)
		case t.isValid(slot):
			if !c.fail("free list holds valid slot %d", slot) {
				return false
			}
		}

		c.marks[slot] |= inFree
		count++
	}

	if want := t.lay.capacity - t.liveCount(); count != want {
		return c.fail("free list holds %d slots, want %d", count, want)
	}

	return true
}

func (c *checker) checkListForward() bool {
	t := c.t
	count := uint32(0)
	prev := nilIndex

	for slot := t.listHead(); slot != nilIndex; slot = t.listNext(slot) {
		switch {
		case !t.inRange(slot):
			return c.fail("order list links to out-of-range slot %d", slot)
		case c.marks[slot]&inList != 0:
			return c.fail("order list visits slot %d twice", slot)
		case !t.isValid(slot):
			if !c.fail("order list holds free slot %d", slot) {
				return false
			}
		case t.listPrev(slot) != prev:
			if !c.fail("slot %d prev is %d, walked from %d", slot, t.listPrev(slot), prev) {
				return false
			}
		}

		c.marks[slot] |= inList
		prev = slot
		count++
	}

	if prev != t.listTail() {
		return c.fail("forward walk ends at %d, tail is %d", prev, t.listTail())
	}

	if count != t.liveCount() {
		return c.fail("forward walk visits %d slots, live count is %d", count, t.liveCount())
	}

	return true
}

func (c *checker) checkListBackward() bool {
	t := c.t
	count := uint32(0)
	last := nilIndex

	for slot := t.listTail(); slot != nilIndex; slot = t.listPrev(slot) {
		if !t.inRange(slot) || count > t.lay.capacity {
			return c.fail("backward walk leaves the slot range at %d", slot)
		}

		last = slot
		count++
	}

	if last != t.listHead() {
		return c.fail("backward walk ends at %d, head is %d", last, t.listHead())
	}

	if count != t.liveCount() {
		return c.fail("backward walk visits %d slots, live count is %d", count, t.liveCount())
	}

	return true
}

// Stats summarizes occupancy and chain shape.
type Stats struct {
	Size         int
	Capacity     int
	UsedBuckets  int
	LongestChain int
	MeanChain    float64
	LRU          bool
	Generation   uint64
}

// Stats computes occupancy statistics by walking every bucket.
func (t *Table) Stats() Stats {
	s := Stats{
		Size:       t.Size(),
		Capacity:   t.MaxSize(),
		LRU:        t.LRUEnabled(),
		Generation: t.Generation(),
	}

	for b := range t.BucketCount() {
		n := t.ElemsInBucket(b)
		if n == 0 {
			continue
		}

		s.UsedBuckets++
		s.LongestChain = max(s.LongestChain, n)
	}

	if s.UsedBuckets > 0 {
		s.MeanChain = float64(s.Size) / float64(s.UsedBuckets)
	}

	return s
}
