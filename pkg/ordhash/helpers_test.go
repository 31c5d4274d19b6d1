// helpers_test.go - Shared constants and helper functions for ordhash tests.

package ordhash_test

import (
	"context"
	"encoding/binary"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// =============================================================================
// Header layout constants (must match format.go)
// =============================================================================

const (
	headerSize     = 256
	offVersion     = 0x004
	offKeySize     = 0x00C
	offCapacity    = 0x01C
	offConfigCRC   = 0x048
	offState       = 0x04C
	offFlags       = 0x050
	offLiveCount   = 0x054
	offFreeHead    = 0x058
	offListHead    = 0x05C
	offListTail    = 0x060
	offReservedEnd = 0x070

	slotOffSelf      = 4
	slotOffChainNext = 8
	slotOffListPrev  = 12
	slotOffListNext  = 16
	slotOffBucket    = 20
	slotOffKey       = 24

	nilIndex = ^uint32(0)
)

// =============================================================================
// Table construction
// =============================================================================

// intOptions is the geometry used by the integer-key scenarios: 8-byte keys,
// 8-byte values.
func intOptions(capacity int) ordhash.Options {
	return ordhash.Options{KeySize: 8, ValueSize: 8, Capacity: capacity}
}

// newTable formats a fresh heap region for opts.
func newTable(tb testing.TB, opts ordhash.Options) *ordhash.Table {
	tb.Helper()

	size, err := ordhash.RegionSize(opts)
	require.NoError(tb, err, "RegionSize")

	opts.Mode = ordhash.ModeFormat

	table, err := ordhash.Open(make([]byte, size), opts)
	require.NoError(tb, err, "Open(ModeFormat)")

	return table
}

// reattach opens a second handle over the same region.
func reattach(tb testing.TB, region []byte, opts ordhash.Options) *ordhash.Table {
	tb.Helper()

	opts.Mode = ordhash.ModeReattach

	table, err := ordhash.Open(region, opts)
	require.NoError(tb, err, "Open(ModeReattach)")

	return table
}

// =============================================================================
// Key encoding
// =============================================================================

func ik(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func decode(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// listKeys returns integer keys in list order, oldest first.
func listKeys(table *ordhash.Table) []uint64 {
	var keys []uint64
	for k := range table.Ordered() {
		keys = append(keys, decode(k))
	}

	return keys
}

// listKeysViaIter walks ListBegin..ListEnd by hand.
func listKeysViaIter(table *ordhash.Table) []uint64 {
	var keys []uint64
	for it := table.ListBegin(); it != table.ListEnd(); it = it.Next() {
		keys = append(keys, decode(it.Key()))
	}

	return keys
}

// backwardKeys returns integer keys newest first.
func backwardKeys(table *ordhash.Table) []uint64 {
	var keys []uint64
	for k := range table.Backward() {
		keys = append(keys, decode(k))
	}

	return keys
}

// hashKeys returns integer keys in hash order.
func hashKeys(table *ordhash.Table) []uint64 {
	var keys []uint64
	for it := table.Begin(); it != table.End(); it = it.Next() {
		keys = append(keys, decode(it.Key()))
	}

	return keys
}

func sorted(keys []uint64) []uint64 {
	out := slices.Clone(keys)
	slices.Sort(out)

	return out
}

// =============================================================================
// Diagnostics capture
// =============================================================================

// recordedLog collects every record a logger emits.
type recordedLog struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recordedLog) Enabled(context.Context, slog.Level) bool { return true }

func (r *recordedLog) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec.Clone())

	return nil
}

func (r *recordedLog) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recordedLog) WithGroup(string) slog.Handler { return r }

// warnings returns "op: message" for each warn-level record.
func (r *recordedLog) warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string

	for _, rec := range r.records {
		if rec.Level < slog.LevelWarn {
			continue
		}

		op := ""
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == "op" {
				op = a.Value.String()
				return false
			}

			return true
		})

		out = append(out, op+": "+rec.Message)
	}

	return out
}

// hasStack reports whether every warn-level record carries a stack attribute.
func (r *recordedLog) hasStack() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Level < slog.LevelWarn {
			continue
		}

		found := false
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == "stack" && a.Value.String() != "" {
				found = true
				return false
			}

			return true
		})

		if !found {
			return false
		}
	}

	return true
}

func newRecordedLogger() (*slog.Logger, *recordedLog) {
	rec := &recordedLog{}
	return slog.New(rec), rec
}

// =============================================================================
// Region mutation helpers
// =============================================================================

func putU32(region []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(region[off:], v)
}

func getU32(region []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(region[off:])
}

// slotOffset returns the byte offset of slot i for 8-byte keys and values.
func slotOffset(i int) int {
	const slotSize = slotOffKey + 8 + 8

	return headerSize + i*slotSize
}
