// Scenario tests: small, fully specified operation sequences on a
// capacity-5 table with integer keys.
//
// Failures mean: list order, size or capacity handling diverged from the
// documented behavior for a case simple enough to check by hand.

package ordhash_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_InsertEqual_Keeps_Duplicates_In_Insertion_Order_When_Keys_Repeat(t *testing.T) {
	t.Parallel()

	table := newTable(t, intOptions(5))

	for _, k := range []uint64{3, 1, 4, 1, 5} {
		_, ok := table.InsertEqual(ik(k), ik(k*10))
		require.True(t, ok, "InsertEqual(%d)", k)
	}

	assert.Equal(t, 5, table.Size())

	if diff := cmp.Diff([]uint64{3, 1, 4, 1, 5}, listKeys(table)); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, table.Check())
}

func Test_Erase_Removes_Every_Duplicate_When_Key_Inserted_Twice(t *testing.T) {
	t.Parallel()

	table := newTable(t, intOptions(5))

	for _, k := range []uint64{3, 1, 4, 1, 5} {
		table.InsertEqual(ik(k), ik(k))
	}

	assert.Equal(t, 2, table.Erase(ik(1)))
	assert.Equal(t, 3, table.Size())

	if diff := cmp.Diff([]uint64{3, 4, 5}, listKeys(table)); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, table.Check())
}

func Test_Find_Moves_Entry_To_Tail_When_LRU_Enabled(t *testing.T) {
	t.Parallel()

	table := newTable(t, intOptions(5))

	for _, k := range []uint64{10, 20, 30, 40, 50} {
		_, ok := table.InsertUnique(ik(k), ik(k))
		require.True(t, ok)
	}

	table.EnableLRU()
	require.True(t, table.LRUEnabled())

	it := table.Find(ik(30))
	require.True(t, it.Valid())
	assert.Equal(t, uint64(30), decode(it.Value()))

	if diff := cmp.Diff([]uint64{10, 20, 40, 50, 30}, listKeys(table)); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, table.Check())
}

func Test_InsertUnique_Returns_Not_Inserted_When_Table_Full(t *testing.T) {
	t.Parallel()

	table := newTable(t, intOptions(5))

	for k := uint64(1); k <= 5; k++ {
		_, ok := table.InsertUnique(ik(k), ik(k))
		require.True(t, ok)
	}

	require.True(t, table.Full())
	assert.Equal(t, 0, table.LeftSize())

	it, ok := table.InsertUnique(ik(6), ik(6))
	assert.False(t, ok)
	assert.False(t, it.Valid())
	assert.Equal(t, table.End(), it)
	assert.Equal(t, 5, table.Size())

	require.NoError(t, table.Check())
}

func Test_Reattach_Sees_Same_Entries_When_Region_Reused_After_Restart(t *testing.T) {
	t.Parallel()

	opts := intOptions(5)
	table := newTable(t, opts)

	for _, k := range []uint64{7, 2, 9} {
		table.InsertUnique(ik(k), ik(k+100))
	}

	wantList := listKeys(table)
	wantHash := hashKeys(table)

	// A restart is a fresh handle over the same bytes.
	again := reattach(t, table.Region(), opts)

	assert.Equal(t, 3, again.Size())

	if diff := cmp.Diff(wantList, listKeys(again)); diff != "" {
		t.Fatalf("list order mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(wantHash, hashKeys(again)); diff != "" {
		t.Fatalf("hash order mismatch (-want +got):\n%s", diff)
	}

	for _, k := range []uint64{7, 2, 9} {
		v, ok := again.At(ik(k))
		require.True(t, ok, "At(%d)", k)
		assert.Equal(t, k+100, decode(v))
	}
}
