package cachedstore

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/gamereview/internal/stats"
)

// Compile-time check that LRU implements Backend.
var _ Backend = (*LRU)(nil)

// LRU holds up to a fixed number of decoded shards in process memory and
// evicts the least recently read one.
type LRU struct {
	mu        sync.Mutex // serializes Set so Bytes stays exact
	shards    *lru.Cache[int, []byte]
	collector stats.Collector

	bytes     atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLRU returns a backend holding at most capacity shards. A nil collector
// records nothing.
func NewLRU(capacity int, collector stats.Collector) (*LRU, error) {
	if collector == nil {
		collector = stats.NewNoop()
	}
	b := &LRU{collector: collector}
	shards, err := lru.NewWithEvict(capacity, func(_ int, data []byte) {
		b.bytes.Add(-int64(len(data)))
		b.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	b.shards = shards
	return b, nil
}

// Get returns a cached shard and marks it recently used.
func (b *LRU) Get(shardID int) ([]byte, bool) {
	if data, ok := b.shards.Get(shardID); ok {
		b.hits.Add(1)
		b.collector.IncCounter(stats.MetricShardCacheHits, 1)
		return data, true
	}
	b.misses.Add(1)
	b.collector.IncCounter(stats.MetricShardCacheMisses, 1)
	return nil, false
}

// Set caches a shard, replacing any copy already held.
func (b *LRU) Set(shardID int, data []byte) {
	b.mu.Lock()
	if old, ok := b.shards.Peek(shardID); ok {
		b.bytes.Add(-int64(len(old)))
	}
	b.bytes.Add(int64(len(data)))
	b.shards.Add(shardID, data)
	size := b.shards.Len()
	b.mu.Unlock()

	b.collector.SetGauge(stats.MetricCacheSize, int64(size))
}

// Stats returns current cache statistics.
func (b *LRU) Stats() Stats {
	return Stats{
		Hits:      b.hits.Load(),
		Misses:    b.misses.Load(),
		Evictions: b.evictions.Load(),
		Size:      b.shards.Len(),
		Bytes:     b.bytes.Load(),
	}
}
