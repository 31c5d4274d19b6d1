package shm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// CreateMode controls what [Open] does about a missing or existing file.
type CreateMode int

const (
	// CreateIfMissing formats a new segment when Path does not exist and
	// reattaches otherwise. This is the default.
	CreateIfMissing CreateMode = iota

	// MustCreate fails with an error wrapping [os.ErrExist] if Path exists.
	MustCreate

	// MustExist fails with an error wrapping [os.ErrNotExist] if Path is
	// missing.
	MustExist
)

func (c CreateMode) String() string {
	switch c {
	case CreateIfMissing:
		return "create-if-missing"
	case MustCreate:
		return "must-create"
	case MustExist:
		return "must-exist"
	default:
		return fmt.Sprintf("create-mode(%d)", int(c))
	}
}

// blankHeaderSize covers the region header. A file whose first bytes are all
// zero was created but never formatted.
const blankHeaderSize = 256

const (
	segmentDirPerm = 0o755
	segmentPerm    = 0o600
)

// Options configures [Open].
type Options struct {
	// Path is the segment file. Required. A lock file is kept at
	// Path+".lock" unless DisableLocking is set.
	Path string

	// Table is the table geometry. Its Mode field is ignored: Open decides
	// between format and reattach from the state of Path.
	Table ordhash.Options

	// Create controls handling of a missing or existing file.
	Create CreateMode

	// DisableLocking skips the sidecar lock file. The caller MUST serialize
	// Open and every mutation by other means. Lock and TryLock then always
	// succeed.
	DisableLocking bool

	// SyncOnClose flushes the mapping with msync before unmapping.
	SyncOnClose bool

	// Logger receives lifecycle events and is passed on to the table when
	// Table.Logger is nil.
	Logger *slog.Logger
}

// Segment is a table living in a file mapped MAP_SHARED. Every process that
// opens the same Path sees the same table.
//
// Segment methods are safe for concurrent use. The [ordhash.Table] returned by
// [Segment.Table] is not; hold [Segment.Lock] around mutations when more than
// one handle writes.
type Segment struct {
	mu     sync.Mutex
	path   string
	data   []byte
	table  *ordhash.Table
	mode   ordhash.Mode
	locked *fileLock
	opts   Options
	log    *slog.Logger
	closed bool
}

// Open maps the segment at opts.Path, creating and formatting it if needed.
//
// The sidecar lock is held for the whole call, so a concurrent Open never
// observes a half-formatted region.
//
// Possible errors: [ordhash.ErrInvalidInput], [ordhash.ErrCorrupt],
// [ordhash.ErrIncompatible], errors wrapping [os.ErrExist] or
// [os.ErrNotExist], and I/O errors.
func Open(ctx context.Context, opts Options) (*Segment, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ordhash.ErrInvalidInput)
	}

	switch opts.Create {
	case CreateIfMissing, MustCreate, MustExist:
	default:
		return nil, fmt.Errorf("unknown create mode %d: %w", int(opts.Create), ordhash.ErrInvalidInput)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if opts.Table.Logger == nil {
		opts.Table.Logger = log
	}

	if !opts.DisableLocking {
		lock, err := lockFile(ctx, lockPath(opts.Path))
		if err != nil {
			return nil, err
		}

		defer func() { _ = lock.release() }()
	}

	mode, err := prepareFile(opts)
	if err != nil {
		return nil, err
	}

	data, err := mapFile(opts.Path)
	if err != nil {
		return nil, err
	}

	if mode == ordhash.ModeReattach && isBlank(data) {
		mode = ordhash.ModeFormat
	}

	tableOpts := opts.Table
	tableOpts.Mode = mode

	table, err := ordhash.Open(data, tableOpts)
	if err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("%s: %w", opts.Path, err)
	}

	if mode == ordhash.ModeFormat {
		if err := unix.Msync(data, unix.MS_SYNC); err != nil {
			_ = unix.Munmap(data)
			return nil, fmt.Errorf("msync after format: %w", err)
		}
	}

	log.Debug("segment opened",
		slog.String("path", opts.Path),
		slog.String("mode", mode.String()),
		slog.String("segment", table.SegmentID().String()),
		slog.Int("bytes", len(data)),
	)

	return &Segment{
		path:  opts.Path,
		data:  data,
		table: table,
		mode:  mode,
		opts:  opts,
		log:   log,
	}, nil
}

// prepareFile creates a zero-filled file when needed and reports whether the
// region must be formatted or reattached.
func prepareFile(opts Options) (ordhash.Mode, error) {
	_, err := os.Stat(opts.Path)

	switch {
	case err == nil:
		if opts.Create == MustCreate {
			return ordhash.ModeUnset, fmt.Errorf("segment %s: %w", opts.Path, os.ErrExist)
		}

		return ordhash.ModeReattach, nil
	case !errors.Is(err, os.ErrNotExist):
		return ordhash.ModeUnset, fmt.Errorf("stat segment: %w", err)
	case opts.Create == MustExist:
		return ordhash.ModeUnset, fmt.Errorf("segment %s: %w", opts.Path, os.ErrNotExist)
	}

	regionSize, err := ordhash.RegionSize(opts.Table)
	if err != nil {
		return ordhash.ModeUnset, err
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), segmentDirPerm); err != nil {
		return ordhash.ModeUnset, fmt.Errorf("creating segment dir: %w", err)
	}

	size := pageAlign(regionSize)

	if err := atomic.WriteFile(opts.Path, io.LimitReader(zeros{}, int64(size))); err != nil {
		return ordhash.ModeUnset, fmt.Errorf("creating segment file: %w", err)
	}

	if err := os.Chmod(opts.Path, segmentPerm); err != nil {
		return ordhash.ModeUnset, fmt.Errorf("chmod segment file: %w", err)
	}

	return ordhash.ModeFormat, nil
}

// mapFile maps the whole file read-write and shared. The descriptor is
// closed before returning; the mapping outlives it.
func mapFile(path string) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment: %w", err)
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("segment %s is empty: %w", path, ordhash.ErrCorrupt)
	}

	if size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("segment %s too large to map (%d bytes): %w", path, size, ordhash.ErrInvalidInput)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap segment: %w", err)
	}

	return data, nil
}

func lockPath(path string) string {
	return path + ".lock"
}

func pageAlign(n int) int {
	page := unix.Getpagesize()
	return (n + page - 1) / page * page
}

func isBlank(data []byte) bool {
	header := data[:min(len(data), blankHeaderSize)]
	return len(header) == blankHeaderSize && bytes.Count(header, []byte{0}) == blankHeaderSize
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// Table returns the mapped table, or nil after Close.
func (s *Segment) Table() *ordhash.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	return s.table
}

// Mode reports whether Open formatted the segment or reattached to it.
func (s *Segment) Mode() ordhash.Mode {
	return s.mode
}

// Path returns the segment file path.
func (s *Segment) Path() string {
	return s.path
}

// Sync flushes the mapping to the file with msync(MS_SYNC).
func (s *Segment) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}

	return nil
}

// Lock takes the segment lock, waiting until it is free or ctx ends.
//
// Possible errors: [ErrBusy], [ErrClosed].
func (s *Segment) Lock(ctx context.Context) error {
	return s.lock(func() (*fileLock, error) { return lockFile(ctx, lockPath(s.path)) })
}

// TryLock takes the segment lock if it is free.
//
// Possible errors: [ErrBusy], [ErrClosed].
func (s *Segment) TryLock() error {
	return s.lock(func() (*fileLock, error) { return tryLockFile(lockPath(s.path)) })
}

func (s *Segment) lock(take func() (*fileLock, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case s.locked != nil:
		return fmt.Errorf("lock already held by this handle: %w", ErrBusy)
	case s.opts.DisableLocking:
		s.locked = &fileLock{}
		return nil
	}

	lock, err := take()
	if err != nil {
		return err
	}

	s.locked = lock

	return nil
}

// Unlock releases the segment lock. Unlocking a handle that does not hold
// the lock is a no-op.
func (s *Segment) Unlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := s.locked
	s.locked = nil

	return lock.release()
}

// Close releases the lock if held and unmaps the segment. The table must not
// be used afterwards. Close is idempotent.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var syncErr error
	if s.opts.SyncOnClose {
		if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
			syncErr = fmt.Errorf("msync: %w", err)
		}
	}

	unlockErr := s.locked.release()
	s.locked = nil

	var unmapErr error
	if err := unix.Munmap(s.data); err != nil {
		unmapErr = fmt.Errorf("munmap: %w", err)
	}

	s.data = nil
	s.table = nil

	s.log.Debug("segment closed", slog.String("path", s.path))

	return errors.Join(syncErr, unlockErr, unmapErr)
}

// Remove deletes the segment file and its lock file. Handles that still map
// the segment keep working on the unlinked inode.
func Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing segment: %w", err)
	}

	if err := os.Remove(lockPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}

	return nil
}
