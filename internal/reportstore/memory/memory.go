// Package memory provides an in-process review store.
package memory

import (
	"context"
	"sync"

	"github.com/discochess/gamereview/internal/reportstore"
)

// Store keeps reviews in a map. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	reviews map[string]reportstore.Review
}

// Compile-time check that Store implements reportstore.Store.
var _ reportstore.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{reviews: make(map[string]reportstore.Review)}
}

// Put stores a copy of r.
func (s *Store) Put(ctx context.Context, r *reportstore.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[r.ID] = *r
	return nil
}

// Get returns a copy of the review with id.
func (s *Store) Get(ctx context.Context, id string) (*reportstore.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, reportstore.ErrNotFound
	}
	return &r, nil
}

// Len returns the number of stored reviews.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}
