package inmemory

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

type counter struct {
	value      int64
	expiration time.Time
}

func (c counter) expired(now time.Time) bool {
	return !c.expiration.IsZero() && !now.Before(c.expiration)
}

type shard struct {
	mu    sync.Mutex
	items map[string]counter
}

// shardedMap spreads counters over independently locked shards so operations on unrelated
// names do not serialize. A shard lock is held for the whole of a read-modify-write.
type shardedMap struct {
	shards [shardCount]*shard
}

func newShardedMap() *shardedMap {
	m := &shardedMap{}
	for i := 0; i < shardCount; i++ {
		m.shards[i] = &shard{items: make(map[string]counter)}
	}
	return m
}

func (m *shardedMap) getShard(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// update runs f on the live counter of key (zero value when missing or expired) under the
// shard lock. f returns the counter to store and whether the key should be kept.
func (m *shardedMap) update(key string, now time.Time, f func(c counter, found bool) (counter, bool)) {
	s := m.getShard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.items[key]
	if found && c.expired(now) {
		delete(s.items, key)
		c, found = counter{}, false
	}
	nc, keep := f(c, found)
	if keep {
		s.items[key] = nc
	}
}
