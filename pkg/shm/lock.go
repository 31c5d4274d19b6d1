package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Lock file handling.
//
// The segment lock is an advisory flock on a sidecar file at Path+".lock".
// flock applies to an open file description, so two Segments in one process
// exclude each other just like two processes do. The sidecar is never
// replaced or unlinked while a Segment may hold it.

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755

	minLockBackoff = time.Millisecond
	maxLockBackoff = 25 * time.Millisecond
)

// errInodeMismatch means the lock file at path changed between open and
// flock. The caller retries.
var errInodeMismatch = errors.New("inode mismatch")

// fileLock is a held flock. release is idempotent.
type fileLock struct {
	file *os.File
}

func (l *fileLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}

	unlockErr := flockRetryEINTR(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// tryLockFile takes an exclusive lock on path without waiting.
// A lock held elsewhere yields [ErrBusy].
func tryLockFile(path string) (*fileLock, error) {
	for {
		file, err := openLockFile(path)
		if err != nil {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}

		err = acquire(file, path)
		if err == nil {
			return &fileLock{file: file}, nil
		}

		_ = file.Close()

		if errors.Is(err, errInodeMismatch) {
			continue
		}

		return nil, err
	}
}

// lockFile polls tryLockFile with exponential backoff until it succeeds or
// ctx ends.
func lockFile(ctx context.Context, path string) (*fileLock, error) {
	backoff := minLockBackoff

	for {
		lock, err := tryLockFile(path)
		if err == nil {
			return lock, nil
		}

		if !errors.Is(err, ErrBusy) {
			return nil, err
		}

		timer := time.NewTimer(backoff)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("waiting for %s: %w", path, errors.Join(ErrBusy, context.Cause(ctx)))
		case <-timer.C:
		}

		backoff = min(backoff*2, maxLockBackoff)
	}
}

func openLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	if err := os.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, err
	}

	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
}

// acquire flocks file and checks it is still the file at path. On failure
// the file is unlocked but not closed.
func acquire(file *os.File, path string) error {
	fd := int(file.Fd())

	if err := flockRetryEINTR(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return ErrBusy
		}

		return fmt.Errorf("flock: %w", err)
	}

	var held, current unix.Stat_t

	if err := unix.Fstat(fd, &held); err != nil {
		_ = flockRetryEINTR(fd, unix.LOCK_UN)
		return fmt.Errorf("fstat lock file: %w", err)
	}

	if err := unix.Stat(path, &current); err != nil {
		_ = flockRetryEINTR(fd, unix.LOCK_UN)

		if errors.Is(err, unix.ENOENT) {
			return errInodeMismatch
		}

		return fmt.Errorf("stat lock file: %w", err)
	}

	if held.Dev != current.Dev || held.Ino != current.Ino {
		_ = flockRetryEINTR(fd, unix.LOCK_UN)
		return errInodeMismatch
	}

	return nil
}

// flockRetryEINTR retries flock when a signal interrupts it, up to a cap.
func flockRetryEINTR(fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = unix.Flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
