package evalcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/shard/fnvshard"
	"github.com/discochess/gamereview/internal/store/memstore"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	e4FEN    = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	e5FEN    = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2"
)

func game() []model.Position {
	return []model.Position{
		{Index: 0, FEN: startFEN},
		{Index: 1, FEN: e4FEN},
		{Index: 2, FEN: e5FEN},
	}
}

func newMemCache(t *testing.T, opts ...Option) (*Cache, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	c, err := New(append([]Option{WithStore(st), WithTotalShards(8)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, st
}

func TestNew_NoStore(t *testing.T) {
	if _, err := New(); !errors.Is(err, ErrNoStore) {
		t.Errorf("New() error = %v, want ErrNoStore", err)
	}
}

func TestCache_PutLookup(t *testing.T) {
	c, _ := newMemCache(t)
	ctx := context.Background()

	if _, err := c.Lookup(ctx, startFEN); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Lookup() on empty cache error = %v, want ErrNotFound", err)
	}

	entry := model.Entry{Score: 0.3, Depth: 18, BestMove: "e2e4"}
	if err := c.Put(ctx, startFEN, entry); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Move counters are not part of the key.
	got, err := c.Lookup(ctx, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 5 40")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if diff := cmp.Diff(entry, got); diff != "" {
		t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_DeeperWins(t *testing.T) {
	c, _ := newMemCache(t)
	ctx := context.Background()

	c.Put(ctx, startFEN, model.Entry{Score: 0.3, Depth: 22})
	c.Put(ctx, startFEN, model.Entry{Score: 0.9, Depth: 16})
	if got, _ := c.Lookup(ctx, startFEN); got.Score != 0.3 {
		t.Errorf("Score = %v after shallower put, want 0.3", got.Score)
	}

	c.Put(ctx, startFEN, model.Entry{Score: 0.4, Depth: 22})
	if got, _ := c.Lookup(ctx, startFEN); got.Score != 0.4 {
		t.Errorf("Score = %v after equal-depth put, want 0.4", got.Score)
	}
}

func TestCache_MinDepth(t *testing.T) {
	c, _ := newMemCache(t, WithMinDepth(20))
	ctx := context.Background()

	c.Put(ctx, startFEN, model.Entry{Score: 0.3, Depth: 18})
	if _, err := c.Lookup(ctx, startFEN); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound for a shallow record", err)
	}
}

func TestCache_PutAllLookupAll(t *testing.T) {
	c, st := newMemCache(t, WithShardStrategy(fnvshard.New()))
	ctx := context.Background()
	ps := game()

	mate := -2
	evals := model.NewEvaluations(2)
	evals.Entries[0] = model.Entry{PositionIndex: 0, Score: 0.3, Depth: 18, BestMove: "e2e4"}
	evals.Entries[1] = model.Entry{PositionIndex: 1, Score: -100, Mate: &mate, Depth: 20, BestMove: "e7e5"}

	if err := c.PutAll(ctx, ps, evals); err != nil {
		t.Fatalf("PutAll() error = %v", err)
	}
	if len(st.ShardIDs()) == 0 {
		t.Fatal("PutAll() wrote no shards")
	}

	got, err := c.LookupAll(ctx, ps)
	if err != nil {
		t.Fatalf("LookupAll() error = %v", err)
	}
	if diff := cmp.Diff(evals, got); diff != "" {
		t.Errorf("LookupAll() mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_PutAllSkipsAbsent(t *testing.T) {
	c, st := newMemCache(t)
	if err := c.PutAll(context.Background(), game(), model.NewEvaluations(2)); err != nil {
		t.Fatalf("PutAll() error = %v", err)
	}
	if ids := st.ShardIDs(); len(ids) != 0 {
		t.Errorf("shards written for absent entries: %v", ids)
	}
}

func TestCache_Closed(t *testing.T) {
	c, _ := newMemCache(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, err := c.Lookup(context.Background(), startFEN); !errors.Is(err, ErrClosed) {
		t.Errorf("Lookup() error = %v, want ErrClosed", err)
	}
}

func TestOpen_CreatesManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.Put(ctx, e4FEN, model.Entry{Score: -0.2, Depth: 19}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	c.Close()

	m, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.Strategy != "material" || m.TotalShards != DefaultTotalShards || m.Compression != "zstd" {
		t.Errorf("manifest = %+v", m)
	}

	reopened, err := Open(dir, WithShardCache(0))
	if err != nil {
		t.Fatalf("Open() again error = %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Lookup(ctx, e4FEN)
	if err != nil {
		t.Fatalf("Lookup() after reopen error = %v", err)
	}
	if got.Score != -0.2 {
		t.Errorf("Score = %v, want -0.2", got.Score)
	}
}

func TestReadManifest_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := `{"version":1,"total_shards":16,"strategy":"zobrist","compression":"zstd"}`
	if err := os.WriteFile(filepath.Join(dir, ManifestFilename), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadManifest(dir); err == nil {
		t.Error("ReadManifest() error = nil for an unknown strategy")
	}
	if _, err := Open(dir); err == nil {
		t.Error("Open() error = nil for an invalid manifest")
	}
}
