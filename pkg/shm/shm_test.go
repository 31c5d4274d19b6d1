package shm_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
	"github.com/calvinalkan/shmtable/pkg/shm"
)

func tableOptions() ordhash.Options {
	return ordhash.Options{KeySize: 8, ValueSize: 8, Capacity: 16}
}

func key(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func openSegment(tb testing.TB, path string, mutate ...func(*shm.Options)) *shm.Segment {
	tb.Helper()

	opts := shm.Options{Path: path, Table: tableOptions()}
	for _, m := range mutate {
		m(&opts)
	}

	seg, err := shm.Open(context.Background(), opts)
	require.NoError(tb, err, "Open(%s)", path)

	tb.Cleanup(func() { _ = seg.Close() })

	return seg
}

func Test_Open_Formats_Then_Reattaches_When_Path_Reused(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "table.shm")

	first := openSegment(t, path)
	assert.Equal(t, ordhash.ModeFormat, first.Mode())
	assert.Equal(t, path, first.Path())

	for k := range uint64(5) {
		_, ok := first.Table().InsertUnique(key(k), key(k*10))
		require.True(t, ok)
	}

	require.NoError(t, first.Sync())
	require.NoError(t, first.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size()%int64(os.Getpagesize()), "file is page aligned")
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := openSegment(t, path)
	assert.Equal(t, ordhash.ModeReattach, second.Mode())
	assert.Equal(t, 5, second.Table().Size())

	v, ok := second.Table().At(key(3))
	require.True(t, ok)
	assert.Equal(t, key(30), v)
}

func Test_Segments_Share_Memory_When_Same_Path_Open_Twice(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")

	a := openSegment(t, path)
	b := openSegment(t, path)

	a.Table().InsertUnique(key(1), key(1))
	b.Table().EnableLRU()

	assert.Equal(t, 1, b.Table().Size())
	assert.True(t, a.Table().LRUEnabled())
	assert.Equal(t, a.Table().SegmentID(), b.Table().SegmentID())
}

func Test_Open_Honors_CreateMode_When_File_State_Differs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.shm")

	_, err := shm.Open(context.Background(), shm.Options{Path: missing, Table: tableOptions(), Create: shm.MustExist})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(missing)
	require.ErrorIs(t, statErr, os.ErrNotExist, "MustExist never creates")

	existing := filepath.Join(dir, "existing.shm")
	openSegment(t, existing)

	_, err = shm.Open(context.Background(), shm.Options{Path: existing, Table: tableOptions(), Create: shm.MustCreate})
	require.ErrorIs(t, err, os.ErrExist)
}

func Test_Open_Returns_Error_When_Options_Or_File_Bad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	_, err := shm.Open(ctx, shm.Options{Table: tableOptions()})
	require.ErrorIs(t, err, ordhash.ErrInvalidInput)

	_, err = shm.Open(ctx, shm.Options{Path: filepath.Join(dir, "x"), Table: ordhash.Options{KeySize: 0, Capacity: 1}})
	require.ErrorIs(t, err, ordhash.ErrInvalidInput)

	path := filepath.Join(dir, "table.shm")
	openSegment(t, path)

	bigger := tableOptions()
	bigger.Capacity = 17

	_, err = shm.Open(ctx, shm.Options{Path: path, Table: bigger})
	require.ErrorIs(t, err, ordhash.ErrIncompatible)

	empty := filepath.Join(dir, "empty.shm")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))

	_, err = shm.Open(ctx, shm.Options{Path: empty, Table: tableOptions()})
	require.ErrorIs(t, err, ordhash.ErrCorrupt)

	garbage := filepath.Join(dir, "garbage.shm")
	require.NoError(t, os.WriteFile(garbage, []byte("not a table at all, just some bytes"), 0o600))

	_, err = shm.Open(ctx, shm.Options{Path: garbage, Table: tableOptions()})
	require.ErrorIs(t, err, ordhash.ErrCorrupt)
}

func Test_Open_Formats_File_When_Existing_File_Is_Zero_Filled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blank.shm")

	size, err := ordhash.RegionSize(tableOptions())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))

	seg := openSegment(t, path, func(o *shm.Options) { o.Create = shm.MustExist })
	assert.Equal(t, ordhash.ModeFormat, seg.Mode())
	assert.True(t, seg.Table().Empty())
}

func Test_Open_Adopts_Geometry_When_Adopt_Set(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")
	openSegment(t, path, func(o *shm.Options) {
		o.Table = ordhash.Options{KeySize: 4, ValueSize: 2, Capacity: 9, Hash: ordhash.HashXXH64}
	})

	seg := openSegment(t, path, func(o *shm.Options) {
		o.Table = ordhash.Options{Adopt: true}
		o.Create = shm.MustExist
	})

	cfg := seg.Table().Config()
	assert.Equal(t, 4, cfg.KeySize)
	assert.Equal(t, 9, cfg.Capacity)
	assert.Equal(t, ordhash.HashXXH64, cfg.Hash)
}

func Test_TryLock_Returns_ErrBusy_When_Other_Handle_Holds_Lock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")
	a := openSegment(t, path)
	b := openSegment(t, path)

	require.NoError(t, a.TryLock())
	require.ErrorIs(t, b.TryLock(), shm.ErrBusy)
	require.ErrorIs(t, a.TryLock(), shm.ErrBusy, "lock is not reentrant")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, b.Lock(ctx), shm.ErrBusy)

	require.NoError(t, a.Unlock())
	require.NoError(t, a.Unlock(), "unlock without lock is a no-op")
	require.NoError(t, b.Lock(context.Background()))
	require.NoError(t, b.Unlock())
}

func Test_Lock_Waits_Until_Released_When_Held_Briefly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")
	a := openSegment(t, path)
	b := openSegment(t, path)

	require.NoError(t, a.Lock(context.Background()))

	done := make(chan error, 1)

	go func() {
		done <- b.Lock(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Unlock())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Lock did not return after release")
	}

	require.NoError(t, b.Unlock())
}

func Test_Lock_Always_Succeeds_When_Locking_Disabled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")
	a := openSegment(t, path, func(o *shm.Options) { o.DisableLocking = true })
	b := openSegment(t, path, func(o *shm.Options) { o.DisableLocking = true })

	require.NoError(t, a.TryLock())
	require.NoError(t, b.TryLock())

	_, err := os.Stat(path + ".lock")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Close_Is_Idempotent_And_Releases_Lock_When_Called(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")
	a := openSegment(t, path, func(o *shm.Options) { o.SyncOnClose = true })
	b := openSegment(t, path)

	require.NoError(t, a.TryLock())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.Nil(t, a.Table())
	require.ErrorIs(t, a.Sync(), shm.ErrClosed)
	require.ErrorIs(t, a.TryLock(), shm.ErrClosed)

	require.NoError(t, b.TryLock())
	require.NoError(t, b.Unlock())
}

func Test_Remove_Deletes_Segment_And_Lock_When_Present(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.shm")
	seg := openSegment(t, path)
	require.NoError(t, seg.Close())

	require.NoError(t, shm.Remove(path))

	for _, p := range []string{path, path + ".lock"} {
		_, err := os.Stat(p)
		require.ErrorIs(t, err, os.ErrNotExist, p)
	}

	require.ErrorIs(t, shm.Remove(path), os.ErrNotExist)
}
