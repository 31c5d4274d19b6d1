package shm

import "errors"

var (
	// ErrBusy indicates the segment lock is held by another handle.
	//
	// Returned by [Segment.TryLock], by [Segment.Lock] when its context ends
	// first, and by Lock on a handle that already holds the lock.
	//
	// Recovery: retry later, or use Lock with a longer deadline.
	ErrBusy = errors.New("shm: busy")

	// ErrClosed indicates the Segment was closed.
	//
	// Recovery: open a new Segment.
	ErrClosed = errors.New("shm: closed")
)
