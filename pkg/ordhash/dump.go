package ordhash

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

func fmtIndex(v uint32) string {
	if v == nilIndex {
		return "-"
	}

	return strconv.FormatUint(uint64(v), 10)
}

// Dump writes a human-readable view of the header, every non-empty bucket
// chain and the order list. Corrupt links are printed, not followed past the
// capacity.
func (t *Table) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)

	lru := "off"
	if t.LRUEnabled() {
		lru = "on"
	}

	fmt.Fprintf(bw, "segment %s\n", t.SegmentID())
	fmt.Fprintf(bw, "capacity %d key_size %d value_size %d hash %s region %d\n",
		t.lay.capacity, t.lay.keySize, t.lay.valueSize, t.alg, t.lay.regionSize)
	fmt.Fprintf(bw, "size %d lru %s generation %d\n", t.liveCount(), lru, t.Generation())
	fmt.Fprintf(bw, "free_head %s list_head %s list_tail %s\n",
		fmtIndex(t.freeHead()), fmtIndex(t.listHead()), fmtIndex(t.listTail()))

	for b := range t.lay.capacity {
		head := t.bucketHead(b)
		if head == nilIndex {
			continue
		}

		fmt.Fprintf(bw, "bucket %d:", b)

		steps := uint32(0)
		for slot := head; slot != nilIndex && steps <= t.lay.capacity; steps++ {
			fmt.Fprintf(bw, " %s", fmtIndex(slot))

			if !t.inRange(slot) {
				break
			}

			slot = t.chainNext(slot)
		}

		fmt.Fprintln(bw)
	}

	fmt.Fprint(bw, "order:")

	steps := uint32(0)
	for slot := t.listHead(); slot != nilIndex && steps <= t.lay.capacity; steps++ {
		fmt.Fprintf(bw, " %s", fmtIndex(slot))

		if !t.inRange(slot) {
			break
		}

		slot = t.listNext(slot)
	}

	fmt.Fprintln(bw)

	return bw.Flush()
}

// DumpSlots writes one line per slot with its links, key and value in hex.
func (t *Table) DumpSlots(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for i := range t.lay.capacity {
		state := "free"
		if t.isValid(i) {
			state = "live"
		}

		fmt.Fprintf(bw, "slot %d %s self=%s bucket=%s chain=%s prev=%s next=%s",
			i, state,
			fmtIndex(t.slotU32(i, slotOffSelf)),
			fmtIndex(t.slotBucket(i)),
			fmtIndex(t.chainNext(i)),
			fmtIndex(t.listPrev(i)),
			fmtIndex(t.listNext(i)),
		)

		if t.isValid(i) {
			fmt.Fprintf(bw, " key=%s value=%s",
				hex.EncodeToString(t.keyBytes(i)), hex.EncodeToString(t.valueBytes(i)))
		}

		fmt.Fprintln(bw)
	}

	return bw.Flush()
}
