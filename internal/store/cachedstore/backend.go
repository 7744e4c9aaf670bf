// Package cachedstore keeps recently used shards decoded in memory in front
// of a slower Store.
package cachedstore

// Backend holds cached shards. Implementations choose where the shards live
// and how they are evicted.
type Backend interface {
	// Get returns a cached shard and whether it was present.
	Get(shardID int) ([]byte, bool)

	// Set caches a shard, possibly evicting another.
	Set(shardID int, data []byte)

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats counts cache outcomes.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	// Size is the number of shards currently held.
	Size int
	// Bytes is the decoded size of the shards held.
	Bytes int64
}

// HitRate returns the share of reads served from the cache as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
