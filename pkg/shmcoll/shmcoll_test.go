package shmcoll_test

import (
	"bytes"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
	"github.com/calvinalkan/shmtable/pkg/shmcoll"
)

func newTable(tb testing.TB, opts ordhash.Options) *ordhash.Table {
	tb.Helper()

	size, err := ordhash.RegionSize(opts)
	require.NoError(tb, err)

	table, err := ordhash.Format(make([]byte, size), opts)
	require.NoError(tb, err)

	return table
}

func newMap[K, V any](tb testing.TB, keys shmcoll.Codec[K], values shmcoll.Codec[V], capacity int) *shmcoll.Map[K, V] {
	tb.Helper()

	m, err := shmcoll.NewMap(newTable(tb, shmcoll.Options(keys, values, capacity)), keys, values)
	require.NoError(tb, err)

	return m
}

func Test_Int64_Encoding_Sorts_Like_Numbers_When_Compared_Bytewise(t *testing.T) {
	t.Parallel()

	codec := shmcoll.Int64()
	rng := rand.New(rand.NewPCG(5, 5))

	values := []int64{math.MinInt64, -1, 0, 1, math.MaxInt64}
	for range 50 {
		values = append(values, rng.Int64()-math.MaxInt64/2)
	}

	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = make([]byte, codec.Size())
		require.NoError(t, codec.Encode(encoded[i], v))
		assert.Equal(t, v, codec.Decode(encoded[i]))
	}

	slices.SortFunc(encoded, bytes.Compare)

	decoded := make([]int64, len(encoded))
	for i, b := range encoded {
		decoded[i] = codec.Decode(b)
	}

	assert.True(t, slices.IsSorted(decoded))
}

func Test_String_Codec_Normalizes_When_Forms_Differ(t *testing.T) {
	t.Parallel()

	m := newMap(t, shmcoll.String(16), shmcoll.Uint32(), 4)

	// Precomposed U+00E9, then e followed by a combining acute accent.
	ok, err := m.Insert("caf\u00e9", 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Insert("cafe\u0301", 2)
	require.NoError(t, err)
	assert.False(t, ok, "canonically equivalent key already present")

	v, found := m.Get("cafe\u0301")
	require.True(t, found)
	assert.Equal(t, uint32(1), v)

	keys := slices.Collect(m.Keys())
	assert.Equal(t, []string{"caf\u00e9"}, keys)
}

func Test_Codecs_Reject_Values_When_Width_Wrong(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 4)

	require.ErrorIs(t, shmcoll.String(4).Encode(buf, "hello"), ordhash.ErrInvalidInput)
	require.ErrorIs(t, shmcoll.String(4).Encode(buf, "a\x00b"), ordhash.ErrInvalidInput)
	require.ErrorIs(t, shmcoll.Bytes(4).Encode(buf, []byte{1, 2}), ordhash.ErrInvalidInput)

	m := newMap(t, shmcoll.String(4), shmcoll.Bytes(2), 2)

	_, err := m.Insert("toolong", []byte{1, 2})
	require.ErrorIs(t, err, ordhash.ErrInvalidInput)

	require.ErrorIs(t, m.Set("ok", []byte{1}), ordhash.ErrInvalidInput)
	assert.Equal(t, 0, m.Len())

	_, found := m.Get("toolong")
	assert.False(t, found)
}

func Test_Map_Matches_Go_Map_When_Random_Ops_Applied(t *testing.T) {
	t.Parallel()

	const capacity = 32

	rng := rand.New(rand.NewPCG(9, 9))
	m := newMap(t, shmcoll.Uint64(), shmcoll.Int64(), capacity)
	want := map[uint64]int64{}

	for step := range 2000 {
		k := rng.Uint64N(48)
		v := rng.Int64()

		switch rng.IntN(4) {
		case 0:
			ok, err := m.Insert(k, v)
			_, exists := want[k]

			switch {
			case exists:
				require.NoError(t, err, "step %d", step)
				require.False(t, ok)
			case len(want) == capacity:
				require.ErrorIs(t, err, shmcoll.ErrFull, "step %d", step)
			default:
				require.NoError(t, err)
				require.True(t, ok)

				want[k] = v
			}
		case 1:
			err := m.Set(k, v)
			if _, exists := want[k]; exists || len(want) < capacity {
				require.NoError(t, err, "step %d", step)

				want[k] = v
			} else {
				require.ErrorIs(t, err, shmcoll.ErrFull)
			}
		case 2:
			_, exists := want[k]
			require.Equal(t, exists, m.Delete(k), "step %d", step)
			delete(want, k)
		case 3:
			got, ok := m.Get(k)
			wantV, exists := want[k]
			require.Equal(t, exists, ok, "step %d", step)
			require.Equal(t, wantV, got)
		}

		require.Equal(t, len(want), m.Len())
	}

	got := map[uint64]int64{}
	for k, v := range m.All() {
		got[k] = v
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("contents mismatch (-want +got):\n%s", diff)
	}
}

func Test_Map_Evicts_Least_Recently_Used_When_LRU_Enabled(t *testing.T) {
	t.Parallel()

	m := newMap(t, shmcoll.Uint64(), shmcoll.Uint64(), 3)
	m.EnableLRU()

	for k := uint64(1); k <= 3; k++ {
		_, err := m.Insert(k, k*100)
		require.NoError(t, err)
	}

	_, found := m.Get(1)
	require.True(t, found)
	require.True(t, m.Has(2))

	k, v, ok := m.Oldest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), k)
	assert.Equal(t, uint64(300), v)

	k, _, ok = m.EvictOldest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), k)

	_, err := m.Insert(4, 400)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2, 4}, slices.Collect(m.Keys()))
	assert.Equal(t, 3, m.Cap())

	m.Clear()
	_, _, ok = m.EvictOldest()
	assert.False(t, ok)
}

func Test_NewMap_Returns_ErrIncompatible_When_Codec_Sizes_Differ(t *testing.T) {
	t.Parallel()

	table := newTable(t, ordhash.Options{KeySize: 8, ValueSize: 4, Capacity: 2})

	_, err := shmcoll.NewMap(table, shmcoll.Uint64(), shmcoll.Uint64())
	require.ErrorIs(t, err, ordhash.ErrIncompatible)

	_, err = shmcoll.NewSet(table, shmcoll.Uint64())
	require.ErrorIs(t, err, ordhash.ErrIncompatible)

	_, err = shmcoll.NewMultiMap[uint64, uint64](nil, shmcoll.Uint64(), shmcoll.Uint64())
	require.ErrorIs(t, err, ordhash.ErrInvalidInput)
}

func Test_Set_Tracks_Membership_When_Members_Added_And_Removed(t *testing.T) {
	t.Parallel()

	keys := shmcoll.String(8)
	s, err := shmcoll.NewSet(newTable(t, shmcoll.Options(keys, shmcoll.Empty(), 3)), keys)
	require.NoError(t, err)

	for _, k := range []string{"b", "a", "c", "a"} {
		_, err := s.Add(k)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Has("a"))

	_, err = s.Add("d")
	require.ErrorIs(t, err, shmcoll.ErrFull)

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, slices.Collect(s.All()))
}

func Test_MultiMap_Returns_Values_Newest_First_When_Key_Repeats(t *testing.T) {
	t.Parallel()

	keys, values := shmcoll.Uint32(), shmcoll.String(8)
	table := newTable(t, shmcoll.Options(keys, values, 6))

	mm, err := shmcoll.NewMultiMap(table, keys, values)
	require.NoError(t, err)

	require.NoError(t, mm.Add(1, "one"))
	require.NoError(t, mm.Add(2, "two"))
	require.NoError(t, mm.Add(1, "uno"))
	require.NoError(t, mm.Add(1, "eins"))

	assert.Equal(t, []string{"eins", "uno", "one"}, mm.GetAll(1))
	assert.Equal(t, 3, mm.Count(1))
	assert.Nil(t, mm.GetAll(3))

	type pair struct {
		K uint32
		V string
	}

	var all []pair
	for k, v := range mm.All() {
		all = append(all, pair{k, v})
	}

	assert.Equal(t, []pair{{1, "one"}, {2, "two"}, {1, "uno"}, {1, "eins"}}, all)

	assert.Equal(t, 3, mm.Delete(1))
	assert.Equal(t, 1, mm.Len())
	assert.Same(t, table, mm.Table())
}
