// Package memstore keeps shards in process memory.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/discochess/gamereview/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is an in-memory shard store. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	shards map[int][]byte
}

// New returns an empty store.
func New() *Store {
	return &Store{
		shards: make(map[int][]byte),
	}
}

// ReadShard returns a copy of the shard.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.shards[shardID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// WriteShard stores a copy of data.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shards[shardID] = append([]byte(nil), data...)
	return nil
}

// ShardIDs returns the IDs of every stored shard in ascending order.
func (s *Store) ShardIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.shards))
	for id := range s.shards {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
