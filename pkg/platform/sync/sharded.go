package sync

import (
	"hash/fnv"
	"sync"
)

// DefaultShards is the shard count used by NewShardedMutex.
const DefaultShards = 32

// ShardedMutex serializes work per key without a process-wide lock.
// Keys are hashed onto a fixed set of mutexes; two different keys may share a
// shard, which only costs contention, never correctness.
type ShardedMutex struct {
	shards []sync.Mutex
}

// NewShardedMutex creates a ShardedMutex with DefaultShards shards.
func NewShardedMutex() *ShardedMutex {
	return NewShardedMutexN(DefaultShards)
}

// NewShardedMutexN creates a ShardedMutex with n shards (minimum 1).
func NewShardedMutexN(n int) *ShardedMutex {
	if n < 1 {
		n = 1
	}
	return &ShardedMutex{shards: make([]sync.Mutex, n)}
}

// Lock acquires the lock for the given key's shard.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// WithLock runs fn while holding key's shard.
func (m *ShardedMutex) WithLock(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

// shardFor returns the shard index for the given key. Empty keys use shard 0.
func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.shards)))
}
