// Package caching provides caching utilities shared by the cache layers.
package caching

import "sync"

// WarmingLock keeps at most one holder per key. Callers that lose the race
// skip their work instead of waiting.
type WarmingLock struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

func NewWarmingLock() *WarmingLock {
	return &WarmingLock{locks: make(map[string]struct{})}
}

// TryLock acquires key without blocking and reports whether it did.
func (l *WarmingLock) TryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.locks[key]; held {
		return false
	}
	l.locks[key] = struct{}{}
	return true
}

// Unlock releases key.
func (l *WarmingLock) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
}

// Held reports whether key is currently locked.
func (l *WarmingLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.locks[key]
	return held
}
