package ordhash

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// OHT1 region format constants.
const (
	// Region format version.
	oht1Version = 1

	// Fixed header size in bytes.
	oht1HeaderSize = 256

	// Fixed per-slot link area preceding the key bytes.
	slotLinkSize = 24

	// Header flags.
	flagLRU uint32 = 1 << 0

	// Slot meta bits.
	metaValid uint32 = 1 << 0
)

var oht1Magic = [4]byte{'O', 'H', 'T', '1'}

// nilIndex is the empty sentinel for every slot and bucket link.
const nilIndex = ^uint32(0)

// Header field offsets (bytes from region start).
//
// Fields before offConfigCRC form the immutable config block written once by
// Format and covered by the CRC. Fields after it change on every mutation.
const (
	offMagic       = 0x000 // [4]byte
	offVersion     = 0x004 // uint32
	offHeaderSize  = 0x008 // uint32
	offKeySize     = 0x00C // uint32
	offValueSize   = 0x010 // uint32
	offSlotSize    = 0x014 // uint32
	offHashAlg     = 0x018 // uint32
	offCapacity    = 0x01C // uint32
	offSlotsOffset = 0x020 // uint64
	offBucketsOff  = 0x028 // uint64
	offRegionSize  = 0x030 // uint64
	offSegmentID   = 0x038 // [16]byte
	offConfigCRC   = 0x048 // uint32
	offState       = 0x04C // uint32
	offFlags       = 0x050 // uint32
	offLiveCount   = 0x054 // uint32
	offFreeHead    = 0x058 // uint32
	offListHead    = 0x05C // uint32
	offListTail    = 0x060 // uint32
	offReserved0   = 0x064 // uint32
	offGeneration  = 0x068 // uint64
	offReservedEnd = 0x070 // reserved bytes through 0x0FF
)

// Region state values (stored at offState).
const (
	// stateUnformatted is the zero value of a fresh mapping.
	stateUnformatted uint32 = 0
	// stateFormatting is written before Format touches slots; a region left in
	// this state was interrupted and must be formatted again.
	stateFormatting uint32 = 1
	// stateReady marks a fully formatted region.
	stateReady uint32 = 2
)

// Slot field offsets (bytes from slot start).
const (
	slotOffMeta      = 0  // uint32
	slotOffSelf      = 4  // uint32
	slotOffChainNext = 8  // uint32 (free-list next while the slot is free)
	slotOffListPrev  = 12 // uint32
	slotOffListNext  = 16 // uint32
	slotOffBucket    = 20 // uint32
	slotOffKey       = slotLinkSize
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// layout is the geometry derived from key size, value size and capacity.
// Both Format and Reattach compute it the same way, so a region is readable
// by any process that agrees on those three numbers.
type layout struct {
	keySize    int
	valueSize  int
	valueOff   int // value offset within a slot
	slotSize   int
	capacity   uint32
	slotsOff   int
	bucketsOff int
	regionSize int
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// computeLayout validates geometry and returns the derived offsets.
func computeLayout(keySize, valueSize, capacity int) (layout, error) {
	if keySize < 1 {
		return layout{}, fmt.Errorf("key_size must be >= 1, got %d: %w", keySize, ErrInvalidInput)
	}

	if keySize > maxKeySizeBytes {
		return layout{}, fmt.Errorf("key_size %d exceeds max %d: %w", keySize, maxKeySizeBytes, ErrInvalidInput)
	}

	if valueSize < 0 {
		return layout{}, fmt.Errorf("value_size must be >= 0, got %d: %w", valueSize, ErrInvalidInput)
	}

	if valueSize > maxValueSizeBytes {
		return layout{}, fmt.Errorf("value_size %d exceeds max %d: %w", valueSize, maxValueSizeBytes, ErrInvalidInput)
	}

	if capacity < 1 {
		return layout{}, fmt.Errorf("capacity must be >= 1, got %d: %w", capacity, ErrInvalidInput)
	}

	if capacity > maxCapacity {
		return layout{}, fmt.Errorf("capacity %d exceeds max %d: %w", capacity, maxCapacity, ErrInvalidInput)
	}

	valueOff := slotOffKey + align8(keySize)
	slotSize := valueOff + align8(valueSize)

	slotsBytes := uint64(slotSize) * uint64(capacity)
	bucketsBytes := uint64(align8(4 * capacity))
	total := uint64(oht1HeaderSize) + slotsBytes + bucketsBytes

	if total > maxRegionSizeBytes {
		return layout{}, fmt.Errorf("region size %d exceeds max %d: %w", total, maxRegionSizeBytes, ErrInvalidInput)
	}

	return layout{
		keySize:    keySize,
		valueSize:  valueSize,
		valueOff:   valueOff,
		slotSize:   slotSize,
		capacity:   uint32(capacity),
		slotsOff:   oht1HeaderSize,
		bucketsOff: oht1HeaderSize + int(slotsBytes),
		regionSize: int(total),
	}, nil
}

// encodeConfig writes the immutable config block (everything before the CRC)
// into the header and seals it with the CRC.
func encodeConfig(data []byte, lay layout, alg HashAlg, segmentID [16]byte) {
	copy(data[offMagic:], oht1Magic[:])
	binary.LittleEndian.PutUint32(data[offVersion:], oht1Version)
	binary.LittleEndian.PutUint32(data[offHeaderSize:], oht1HeaderSize)
	binary.LittleEndian.PutUint32(data[offKeySize:], uint32(lay.keySize))
	binary.LittleEndian.PutUint32(data[offValueSize:], uint32(lay.valueSize))
	binary.LittleEndian.PutUint32(data[offSlotSize:], uint32(lay.slotSize))
	binary.LittleEndian.PutUint32(data[offHashAlg:], uint32(alg))
	binary.LittleEndian.PutUint32(data[offCapacity:], lay.capacity)
	binary.LittleEndian.PutUint64(data[offSlotsOffset:], uint64(lay.slotsOff))
	binary.LittleEndian.PutUint64(data[offBucketsOff:], uint64(lay.bucketsOff))
	binary.LittleEndian.PutUint64(data[offRegionSize:], uint64(lay.regionSize))
	copy(data[offSegmentID:offConfigCRC], segmentID[:])

	binary.LittleEndian.PutUint32(data[offConfigCRC:], computeConfigCRC(data))
}

// computeConfigCRC computes CRC32-C over the config block.
func computeConfigCRC(data []byte) uint32 {
	return crc32.Checksum(data[:offConfigCRC], crc32cTable)
}

// headerConfig is the decoded config block of a region.
type headerConfig struct {
	version    uint32
	headerSize uint32
	keySize    uint32
	valueSize  uint32
	slotSize   uint32
	hashAlg    HashAlg
	capacity   uint32
	slotsOff   uint64
	bucketsOff uint64
	regionSize uint64
	storedCRC  uint32
}

func decodeConfig(data []byte) headerConfig {
	return headerConfig{
		version:    binary.LittleEndian.Uint32(data[offVersion:]),
		headerSize: binary.LittleEndian.Uint32(data[offHeaderSize:]),
		keySize:    binary.LittleEndian.Uint32(data[offKeySize:]),
		valueSize:  binary.LittleEndian.Uint32(data[offValueSize:]),
		slotSize:   binary.LittleEndian.Uint32(data[offSlotSize:]),
		hashAlg:    HashAlg(binary.LittleEndian.Uint32(data[offHashAlg:])),
		capacity:   binary.LittleEndian.Uint32(data[offCapacity:]),
		slotsOff:   binary.LittleEndian.Uint64(data[offSlotsOffset:]),
		bucketsOff: binary.LittleEndian.Uint64(data[offBucketsOff:]),
		regionSize: binary.LittleEndian.Uint64(data[offRegionSize:]),
		storedCRC:  binary.LittleEndian.Uint32(data[offConfigCRC:]),
	}
}

// hasReservedBytesSet reports whether any reserved header byte is non-zero.
func hasReservedBytesSet(data []byte) bool {
	if binary.LittleEndian.Uint32(data[offReserved0:]) != 0 {
		return true
	}

	for _, b := range data[offReservedEnd:oht1HeaderSize] {
		if b != 0 {
			return true
		}
	}

	return false
}

// Header accessors. Mutable fields are read straight from the region so that
// every handle mapped onto the same memory sees the same state.

func (t *Table) hdrU32(off int) uint32 {
	return binary.LittleEndian.Uint32(t.data[off:])
}

func (t *Table) setHdrU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(t.data[off:], v)
}

func (t *Table) liveCount() uint32 { return t.hdrU32(offLiveCount) }
func (t *Table) freeHead() uint32 { return t.hdrU32(offFreeHead) }
func (t *Table) listHead() uint32 { return t.hdrU32(offListHead) }
func (t *Table) listTail() uint32 { return t.hdrU32(offListTail) }
func (t *Table) flags() uint32 { return t.hdrU32(offFlags) }
func (t *Table) setLiveCount(v uint32) { t.setHdrU32(offLiveCount, v) }
func (t *Table) setFreeHead(v uint32) { t.setHdrU32(offFreeHead, v) }
func (t *Table) setListHead(v uint32) { t.setHdrU32(offListHead, v) }
func (t *Table) setListTail(v uint32) { t.setHdrU32(offListTail, v) }
func (t *Table) setFlags(v uint32) { t.setHdrU32(offFlags, v) }

func (t *Table) bumpGeneration() {
	g := binary.LittleEndian.Uint64(t.data[offGeneration:])
	binary.LittleEndian.PutUint64(t.data[offGeneration:], g+1)
}

// Slot accessors.

func (t *Table) slotOff(slot uint32) int {
	return t.lay.slotsOff + int(slot)*t.lay.slotSize
}

func (t *Table) slotU32(slot uint32, field int) uint32 {
	return binary.LittleEndian.Uint32(t.data[t.slotOff(slot)+field:])
}

func (t *Table) setSlotU32(slot uint32, field int, v uint32) {
	binary.LittleEndian.PutUint32(t.data[t.slotOff(slot)+field:], v)
}

func (t *Table) isValid(slot uint32) bool {
	return t.slotU32(slot, slotOffMeta)&metaValid != 0
}

func (t *Table) chainNext(slot uint32) uint32 { return t.slotU32(slot, slotOffChainNext) }
func (t *Table) listPrev(slot uint32) uint32 { return t.slotU32(slot, slotOffListPrev) }
func (t *Table) listNext(slot uint32) uint32 { return t.slotU32(slot, slotOffListNext) }
func (t *Table) slotBucket(slot uint32) uint32 {
	return t.slotU32(slot, slotOffBucket)
}

func (t *Table) setChainNext(slot, v uint32) { t.setSlotU32(slot, slotOffChainNext, v) }
func (t *Table) setListPrev(slot, v uint32) { t.setSlotU32(slot, slotOffListPrev, v) }
func (t *Table) setListNext(slot, v uint32) { t.setSlotU32(slot, slotOffListNext, v) }

// keyBytes returns the key bytes of a slot, aliasing the region.
func (t *Table) keyBytes(slot uint32) []byte {
	off := t.slotOff(slot) + slotOffKey
	end := off + t.lay.keySize

	return t.data[off:end:end]
}

// valueBytes returns the value bytes of a slot, aliasing the region.
func (t *Table) valueBytes(slot uint32) []byte {
	off := t.slotOff(slot) + t.lay.valueOff
	end := off + t.lay.valueSize

	return t.data[off:end:end]
}

// payload returns key, padding and value bytes of a slot.
func (t *Table) payload(slot uint32) []byte {
	off := t.slotOff(slot) + slotOffKey
	end := t.slotOff(slot) + t.lay.slotSize

	return t.data[off:end:end]
}

// Bucket accessors.

func (t *Table) bucketHead(b uint32) uint32 {
	return binary.LittleEndian.Uint32(t.data[t.lay.bucketsOff+4*int(b):])
}

func (t *Table) setBucketHead(b, slot uint32) {
	binary.LittleEndian.PutUint32(t.data[t.lay.bucketsOff+4*int(b):], slot)
}
