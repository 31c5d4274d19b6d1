package ordhash

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Mode selects how [Open] initializes a table over its region.
//
// The decision belongs to whoever owns the memory (see package shm): a freshly
// created segment is formatted, an existing one is reattached.
type Mode uint8

const (
	// ModeUnset is the zero value and is rejected by [Open].
	ModeUnset Mode = iota
	// ModeFormat prepares a brand-new region.
	ModeFormat
	// ModeReattach resumes an already populated region.
	ModeReattach
)

func (m Mode) String() string {
	switch m {
	case ModeFormat:
		return "format"
	case ModeReattach:
		return "reattach"
	default:
		return "unset"
	}
}

// ReattachHook restores process-local state for one live entry after
// [Reattach]. It receives copies of the stored bytes and therefore cannot
// modify persisted data.
type ReattachHook func(slot int, key, value []byte)

// Options configures [Open], [Format] and [Reattach].
type Options struct {
	// KeySize is the exact key length in bytes (>= 1).
	KeySize int

	// ValueSize is the exact value length in bytes (>= 0). Sets use 0.
	ValueSize int

	// Capacity is the fixed number of slots and buckets (>= 1).
	Capacity int

	// Hash selects the bucket hash. Zero means [HashFNV1a].
	Hash HashAlg

	// Mode selects Format or Reattach in [Open].
	Mode Mode

	// Adopt makes Reattach take KeySize, ValueSize, Capacity and Hash from the
	// region header instead of requiring them to match. Used by tooling that
	// inspects regions of unknown geometry.
	Adopt bool

	// VerifyOnReattach runs [Table.Check] before Reattach returns.
	VerifyOnReattach bool

	// OnReattach, if set, is called once per live entry in list order at the
	// end of Reattach. Tables whose values carry no process-local state leave
	// it nil and skip the pass.
	OnReattach ReattachHook

	// Logger receives contract-violation diagnostics. Nil discards them.
	Logger *slog.Logger
}

func (opts Options) hashAlg() HashAlg {
	if opts.Hash == 0 {
		return HashFNV1a
	}

	return opts.Hash
}

func (opts Options) logger() *slog.Logger {
	if opts.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return opts.Logger
}

// RegionSize returns the number of bytes a region needs for opts.
//
// Possible errors: [ErrInvalidInput].
func RegionSize(opts Options) (int, error) {
	lay, err := computeLayout(opts.KeySize, opts.ValueSize, opts.Capacity)
	if err != nil {
		return 0, err
	}

	return lay.regionSize, nil
}

// Open initializes a table over region according to opts.Mode.
//
// Possible errors: [ErrInvalidInput], [ErrCorrupt], [ErrIncompatible].
func Open(region []byte, opts Options) (*Table, error) {
	switch opts.Mode {
	case ModeFormat:
		return Format(region, opts)
	case ModeReattach:
		return Reattach(region, opts)
	default:
		return nil, fmt.Errorf("mode must be format or reattach, got %s: %w", opts.Mode, ErrInvalidInput)
	}
}

// Format prepares region as an empty table: every slot on the free list in
// index order, every bucket empty, the order list empty, LRU off, and a new
// segment id. Bytes past [RegionSize] are left untouched.
//
// A crash part way through leaves the region marked as formatting, which
// [Reattach] rejects with [ErrCorrupt].
//
// Possible errors: [ErrInvalidInput].
func Format(region []byte, opts Options) (*Table, error) {
	lay, err := computeLayout(opts.KeySize, opts.ValueSize, opts.Capacity)
	if err != nil {
		return nil, err
	}

	alg := opts.hashAlg()

	hash, err := hashFunc(alg)
	if err != nil {
		return nil, fmt.Errorf("hash %d: %w", uint32(alg), ErrInvalidInput)
	}

	if len(region) < lay.regionSize {
		return nil, fmt.Errorf("region has %d bytes, need %d: %w", len(region), lay.regionSize, ErrInvalidInput)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generating segment id: %w", err)
	}

	t := &Table{
		data: region[:lay.regionSize:lay.regionSize],
		lay:  lay,
		alg:  alg,
		hash: hash,
		log:  opts.logger(),
	}

	clear(t.data[:oht1HeaderSize])
	t.setHdrU32(offState, stateFormatting)

	encodeConfig(t.data, lay, alg, id)
	t.resetBody()
	t.setFlags(0)

	t.setHdrU32(offState, stateReady)

	t.log.Debug("formatted region",
		slog.String("segment", id.String()),
		slog.Int("capacity", opts.Capacity),
		slog.Int("key_size", opts.KeySize),
		slog.Int("value_size", opts.ValueSize),
		slog.String("hash", alg.String()),
	)

	return t, nil
}

// Reattach resumes a region formatted earlier, possibly by another process
// or at another address. It validates the header and changes nothing in the
// region.
//
// Possible errors: [ErrCorrupt], [ErrIncompatible], [ErrInvalidInput].
func Reattach(region []byte, opts Options) (*Table, error) {
	if len(region) < oht1HeaderSize {
		return nil, fmt.Errorf("region has %d bytes, smaller than the %d byte header: %w", len(region), oht1HeaderSize, ErrCorrupt)
	}

	if !bytes.Equal(region[offMagic:offMagic+4], oht1Magic[:]) {
		if regionState(region) == stateUnformatted && isZero(region[:offConfigCRC]) {
			return nil, fmt.Errorf("region was never formatted: %w", ErrCorrupt)
		}

		return nil, fmt.Errorf("bad magic %q: %w", region[offMagic:offMagic+4], ErrCorrupt)
	}

	cfg := decodeConfig(region)

	if cfg.version != oht1Version {
		return nil, fmt.Errorf("format version %d, want %d: %w", cfg.version, oht1Version, ErrIncompatible)
	}

	if cfg.headerSize != oht1HeaderSize {
		return nil, fmt.Errorf("header size %d, want %d: %w", cfg.headerSize, oht1HeaderSize, ErrCorrupt)
	}

	if got := computeConfigCRC(region); got != cfg.storedCRC {
		return nil, fmt.Errorf("config crc %08x, stored %08x: %w", got, cfg.storedCRC, ErrCorrupt)
	}

	if state := regionState(region); state != stateReady {
		return nil, fmt.Errorf("region state %d, format did not complete: %w", state, ErrCorrupt)
	}

	if hasReservedBytesSet(region) {
		return nil, fmt.Errorf("reserved header bytes set: %w", ErrCorrupt)
	}

	if !opts.Adopt {
		if err := matchOptions(cfg, opts); err != nil {
			return nil, err
		}
	}

	lay, err := computeLayout(int(cfg.keySize), int(cfg.valueSize), int(cfg.capacity))
	if err != nil {
		return nil, fmt.Errorf("header geometry (%v): %w", err, ErrCorrupt)
	}

	if uint64(lay.slotSize) != uint64(cfg.slotSize) ||
		uint64(lay.slotsOff) != cfg.slotsOff ||
		uint64(lay.bucketsOff) != cfg.bucketsOff ||
		uint64(lay.regionSize) != cfg.regionSize {
		return nil, fmt.Errorf("header offsets disagree with geometry: %w", ErrCorrupt)
	}

	if len(region) < lay.regionSize {
		return nil, fmt.Errorf("region has %d bytes, header needs %d: %w", len(region), lay.regionSize, ErrCorrupt)
	}

	hash, err := hashFunc(cfg.hashAlg)
	if err != nil {
		return nil, err
	}

	t := &Table{
		data: region[:lay.regionSize:lay.regionSize],
		lay:  lay,
		alg:  cfg.hashAlg,
		hash: hash,
		log:  opts.logger(),
	}

	if err := t.validateCounters(); err != nil {
		return nil, err
	}

	if opts.VerifyOnReattach {
		if err := t.Check(); err != nil {
			return nil, err
		}
	}

	if opts.OnReattach != nil {
		if err := t.runReattachHook(opts.OnReattach); err != nil {
			return nil, err
		}
	}

	t.log.Debug("reattached region",
		slog.String("segment", t.SegmentID().String()),
		slog.Int("size", t.Size()),
		slog.Bool("lru", t.LRUEnabled()),
	)

	return t, nil
}

func matchOptions(cfg headerConfig, opts Options) error {
	switch {
	case uint64(opts.KeySize) != uint64(cfg.keySize):
		return fmt.Errorf("key_size %d, region has %d: %w", opts.KeySize, cfg.keySize, ErrIncompatible)
	case uint64(opts.ValueSize) != uint64(cfg.valueSize):
		return fmt.Errorf("value_size %d, region has %d: %w", opts.ValueSize, cfg.valueSize, ErrIncompatible)
	case uint64(opts.Capacity) != uint64(cfg.capacity):
		return fmt.Errorf("capacity %d, region has %d: %w", opts.Capacity, cfg.capacity, ErrIncompatible)
	case opts.hashAlg() != cfg.hashAlg:
		return fmt.Errorf("hash %s, region has %s: %w", opts.hashAlg(), cfg.hashAlg, ErrIncompatible)
	}

	return nil
}

// validateCounters checks the mutable header fields cheaply. Full structural
// validation is left to Check.
func (t *Table) validateCounters() error {
	live := t.liveCount()
	if live > t.lay.capacity {
		return fmt.Errorf("live count %d exceeds capacity %d: %w", live, t.lay.capacity, ErrCorrupt)
	}

	for _, f := range []struct {
		name string
		v    uint32
	}{
		{"free head", t.freeHead()},
		{"list head", t.listHead()},
		{"list tail", t.listTail()},
	} {
		if f.v != nilIndex && !t.inRange(f.v) {
			return fmt.Errorf("%s %d out of range: %w", f.name, f.v, ErrCorrupt)
		}
	}

	if (t.listHead() == nilIndex) != (live == 0) || (t.listTail() == nilIndex) != (live == 0) {
		return fmt.Errorf("order list ends disagree with live count %d: %w", live, ErrCorrupt)
	}

	if (t.freeHead() == nilIndex) != (live == t.lay.capacity) {
		return fmt.Errorf("free list head %d disagrees with %d of %d slots live: %w", t.freeHead(), live, t.lay.capacity, ErrCorrupt)
	}

	if t.flags()&^flagLRU != 0 {
		return fmt.Errorf("unknown flags %#x: %w", t.flags(), ErrCorrupt)
	}

	return nil
}

func (t *Table) runReattachHook(hook ReattachHook) error {
	steps := uint32(0)

	for slot := t.listHead(); slot != nilIndex; slot = t.listNext(slot) {
		if !t.inRange(slot) || steps >= t.lay.capacity || !t.isValid(slot) {
			return fmt.Errorf("order list broken at slot %d: %w", slot, ErrCorrupt)
		}

		hook(int(slot), bytes.Clone(t.keyBytes(slot)), bytes.Clone(t.valueBytes(slot)))
		steps++
	}

	return nil
}

func regionState(region []byte) uint32 {
	return binary.LittleEndian.Uint32(region[offState:])
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}

	return true
}
