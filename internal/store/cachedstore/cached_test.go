package cachedstore

import (
	"context"
	"errors"
	"testing"

	"github.com/discochess/gamereview/internal/store"
	"github.com/discochess/gamereview/internal/store/memstore"
)

// mapBackend is an unbounded backend for testing.
type mapBackend struct {
	data   map[int][]byte
	hits   int64
	misses int64
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[int][]byte)}
}

func (b *mapBackend) Get(shardID int) ([]byte, bool) {
	if data, ok := b.data[shardID]; ok {
		b.hits++
		return data, true
	}
	b.misses++
	return nil, false
}

func (b *mapBackend) Set(shardID int, data []byte) {
	b.data[shardID] = data
}

func (b *mapBackend) Stats() Stats {
	return Stats{Hits: b.hits, Misses: b.misses, Size: len(b.data)}
}

// failingStore fails every write.
type failingStore struct {
	store.Store
}

func (failingStore) WriteShard(context.Context, int, []byte) error {
	return errors.New("disk full")
}

func TestStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	under := memstore.New()
	under.WriteShard(ctx, 1, []byte("underlying"))

	backend := newMapBackend()
	s := New(under, backend)

	for i := 0; i < 2; i++ {
		data, err := s.ReadShard(ctx, 1)
		if err != nil {
			t.Fatalf("ReadShard() error = %v", err)
		}
		if string(data) != "underlying" {
			t.Errorf("ReadShard() = %q", data)
		}
	}

	if got := s.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Errorf("Stats() = %+v, want 1 hit and 1 miss", got)
	}
}

func TestStore_WriteThrough(t *testing.T) {
	ctx := context.Background()
	under := memstore.New()
	backend := newMapBackend()
	s := New(under, backend)

	backend.Set(4, []byte("stale"))
	if err := s.WriteShard(ctx, 4, []byte("fresh")); err != nil {
		t.Fatalf("WriteShard() error = %v", err)
	}

	cached, _ := s.ReadShard(ctx, 4)
	stored, _ := under.ReadShard(ctx, 4)
	if string(cached) != "fresh" || string(stored) != "fresh" {
		t.Errorf("cached = %q, stored = %q, want both fresh", cached, stored)
	}
}

func TestStore_FailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()
	backend.Set(2, []byte("old"))
	s := New(failingStore{memstore.New()}, backend)

	if err := s.WriteShard(ctx, 2, []byte("new")); err == nil {
		t.Fatal("WriteShard() error = nil")
	}
	if string(backend.data[2]) != "old" {
		t.Errorf("cache = %q after failed write, want old", backend.data[2])
	}
}

func TestStore_NotFound(t *testing.T) {
	s := New(memstore.New(), newMapBackend())
	if _, err := s.ReadShard(context.Background(), 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ReadShard() error = %v, want ErrNotFound", err)
	}
}

func TestStats_HitRate(t *testing.T) {
	tests := []struct {
		hits, misses int64
		want         float64
	}{
		{0, 0, 0},
		{10, 0, 100},
		{0, 10, 0},
		{3, 1, 75},
	}
	for _, tt := range tests {
		s := Stats{Hits: tt.hits, Misses: tt.misses}
		if got := s.HitRate(); got != tt.want {
			t.Errorf("Stats{%d, %d}.HitRate() = %v, want %v", tt.hits, tt.misses, got, tt.want)
		}
	}
}
