package indexer

import "sync/atomic"

// IndexLock is a non-blocking lock guarding index syncs.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire acquires the lock without blocking and reports whether it did.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the holder of a successful TryAcquire.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a sync currently holds the lock.
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
