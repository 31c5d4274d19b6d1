// Fuzz tests for ordhash.
//
// FuzzTable_Matches_Model_When_Ops_Decoded decodes an operation sequence from
// the fuzz input and compares every step against the reference model, the
// same way the seeded property test does.
//
// FuzzReattach_Classifies_Error_When_Region_Mutated flips bytes of a valid
// region and reattaches. Reattach must either fail with ErrCorrupt or
// ErrIncompatible, or hand back a table whose read paths stay in bounds.

package ordhash_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmtable/internal/testutil"
	"github.com/calvinalkan/shmtable/pkg/ordhash"
	"github.com/calvinalkan/shmtable/pkg/ordhash/model"
)

const maxFuzzOps = 256

func opWeightList() []int {
	weights := make([]int, opKindCount)
	for k := range opKindCount {
		weights[k] = opWeights[k]
	}

	return weights
}

func FuzzTable_Matches_Model_When_Ops_Decoded(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 1, 0, 2, 0, 3, 0, 4})
	f.Add([]byte{2, 0, 1, 0, 1, 1, 1, 2, 1, 3, 1, 4, 1, 5, 5, 0, 6, 0, 7, 0})
	f.Add([]byte{3, 0, 9, 0, 9, 6, 0, 3, 9, 4, 9, 2, 9, 8, 0})

	weights := opWeightList()

	f.Fuzz(func(t *testing.T, data []byte) {
		s := testutil.NewByteStream(data)

		profile := profiles[s.NextInt(len(profiles))]
		opts := profile.opts
		table := newTable(t, opts)
		m := model.New(opts.Capacity)

		for step := 0; step < maxFuzzOps && s.HasMore(); step++ {
			kind := opKind(s.NextWeighted(weights))
			key := ik(uint64(s.NextInt(int(profile.keySpan))))
			value := ik(uint64(step + 1))

			desc := fmt.Sprintf("step %d op %d key %d", step, kind, decode(key))
			table = applyOp(t, desc, table, m, opts, kind, key, value)
			compareWithModel(t, desc, table, m)
		}
	})
}

func FuzzReattach_Classifies_Error_When_Region_Mutated(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{1, 0x58, 0x00, 0x07})
	f.Add([]byte{2, 0x04, 0x01, 0xff, 0x10, 0x01, 0x00})
	f.Add([]byte{3, 0x00, 0x00, 0x00, 0x4c, 0x00, 0x09, 0x20, 0x02, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		opts := intOptions(5)
		table := newTable(t, opts)

		for k := range uint64(4) {
			table.InsertEqual(ik(k%3), ik(k))
		}

		table.Erase(ik(1))
		table.EnableLRU()

		region := table.Region()

		s := testutil.NewByteStream(data)
		for n := 1 + s.NextInt(8); n > 0 && s.HasMore(); n-- {
			region[s.NextIndex(len(region))] = s.NextByte()
		}

		hooked := 0
		reopened, err := ordhash.Open(region, ordhash.Options{
			Mode:       ordhash.ModeReattach,
			Adopt:      true,
			OnReattach: func(int, []byte, []byte) { hooked++ },
		})
		if err != nil {
			if !errors.Is(err, ordhash.ErrCorrupt) && !errors.Is(err, ordhash.ErrIncompatible) {
				t.Fatalf("unclassified reattach error: %v", err)
			}

			return
		}

		require.LessOrEqual(t, hooked, reopened.MaxSize(), "hook calls")

		if err := reopened.Check(); err != nil {
			require.ErrorIs(t, err, ordhash.ErrCorrupt)
		}

		_ = reopened.Stats()
		require.NoError(t, reopened.Dump(io.Discard))
		require.NoError(t, reopened.DumpSlots(io.Discard))

		seen := 0
		for range reopened.All() {
			seen++
		}

		require.LessOrEqual(t, seen, reopened.MaxSize(), "hash walk")

		seen = 0
		for range reopened.Ordered() {
			seen++
		}

		require.LessOrEqual(t, seen, reopened.MaxSize(), "list walk")

		for range reopened.Backward() {
		}

		// Lookups promote under LRU, which would write through corrupt links.
		reopened.DisableLRU()

		for k := range uint64(4) {
			_ = reopened.Find(ik(k))
			_ = reopened.Count(ik(k))
		}
	})
}
