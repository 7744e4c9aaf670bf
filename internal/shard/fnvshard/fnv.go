// Package fnvshard spreads positions uniformly by hashing the normalized FEN.
package fnvshard

import (
	"hash/fnv"

	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/shard"
)

// Name is the manifest name of this strategy. The "m" marks the mixed hash;
// directories written with plain FNV-1a under "fnv32" are not readable with it.
const Name = "fnv32m"

// Strategy implements FNV-1a hash sharding.
type Strategy struct{}

// Ensure Strategy implements shard.Strategy.
var _ shard.Strategy = (*Strategy)(nil)

// New returns an FNV sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns "fnv32m".
func (s *Strategy) Name() string {
	return Name
}

// ShardID hashes the normalized FEN. Invalid FENs are hashed as given.
func (s *Strategy) ShardID(fenStr string, totalShards int) int {
	return Hash(fenStr, totalShards)
}

// Hash returns the shard of the normalized key: FNV-1a with its bits mixed
// so that shard counts which are powers of two use every bit of the hash.
func Hash(fenStr string, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	key, err := fen.Normalize(fenStr)
	if err != nil {
		key = fenStr
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(mix(h.Sum32()) % uint32(totalShards))
}

// mix is the murmur3 finalizer.
func mix(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
