// Package shard maps evaluation cache keys onto a fixed number of shard files.
package shard

// Strategy maps FEN positions to shard IDs.
type Strategy interface {
	// Name identifies the strategy in a cache manifest.
	Name() string

	// ShardID returns a shard in [0, totalShards) for fen. Positions that
	// differ only in their move counters map to the same shard.
	ShardID(fen string, totalShards int) int
}
