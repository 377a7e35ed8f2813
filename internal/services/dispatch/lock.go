// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package dispatch

import "sync/atomic"

// Lock guards a dispatch cycle. At most one holder exists at a time.
// Implementations backed by a shared store can coordinate several
// processes.
type Lock interface {
	// TryAcquire takes the lock without waiting and reports success.
	TryAcquire() bool
	// Release frees the lock. Releasing a free lock is a no-op.
	Release()
	// Held reports whether the lock is currently taken.
	Held() bool
}

// LocalLock is an in-process Lock.
type LocalLock struct {
	held atomic.Bool
}

// NewLocalLock returns a free LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

func (l *LocalLock) Release() {
	l.held.Store(false)
}

func (l *LocalLock) Held() bool {
	return l.held.Load()
}
