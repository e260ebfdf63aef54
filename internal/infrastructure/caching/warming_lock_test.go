package caching

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarmingLockSingleHolder(t *testing.T) {
	lock := NewWarmingLock()

	assert.True(t, lock.TryLock("u1"))
	assert.False(t, lock.TryLock("u1"))
	assert.True(t, lock.TryLock("u2"))
	assert.True(t, lock.Held("u1"))

	lock.Unlock("u1")
	assert.False(t, lock.Held("u1"))
	assert.True(t, lock.TryLock("u1"))
}

func TestWarmingLockConcurrent(t *testing.T) {
	lock := NewWarmingLock()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryLock("feed") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
