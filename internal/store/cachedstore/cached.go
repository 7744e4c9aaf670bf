package cachedstore

import (
	"context"

	"github.com/discochess/gamereview/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store wraps another Store with a read cache. Writes go through to the
// underlying store and then replace the cached copy.
type Store struct {
	underlying store.Store
	backend    Backend
}

// New returns a Store caching reads from underlying in backend.
func New(underlying store.Store, backend Backend) *Store {
	return &Store{
		underlying: underlying,
		backend:    backend,
	}
}

// ReadShard returns the cached shard or reads and caches it.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	if data, ok := s.backend.Get(shardID); ok {
		return data, nil
	}

	data, err := s.underlying.ReadShard(ctx, shardID)
	if err != nil {
		return nil, err
	}
	s.backend.Set(shardID, data)
	return data, nil
}

// WriteShard writes through and refreshes the cached copy.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	if err := s.underlying.WriteShard(ctx, shardID, data); err != nil {
		return err
	}
	s.backend.Set(shardID, append([]byte(nil), data...))
	return nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.underlying.Close()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}
