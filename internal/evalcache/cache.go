// Package evalcache stores finished position evaluations so that reviewing a
// game again, or a game sharing an opening with an earlier one, skips
// the engine for positions already searched deeply enough.
//
// Entries are keyed by normalized FEN and grouped into shards by a
// shard.Strategy. Each shard is sorted JSONL held in a store.Store.
package evalcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/search"
	"github.com/discochess/gamereview/internal/shard"
	"github.com/discochess/gamereview/internal/stats"
	"github.com/discochess/gamereview/internal/store"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound indicates the position has no cached evaluation.
	ErrNotFound = errors.New("evalcache: position not found")

	// ErrClosed indicates the cache has been closed.
	ErrClosed = errors.New("evalcache: cache closed")

	// ErrNoStore indicates no store was provided.
	ErrNoStore = errors.New("evalcache: no store provided")
)

// Cache reads and writes cached evaluations. It is safe for concurrent use.
type Cache struct {
	store         store.Store
	shardStrategy shard.Strategy
	totalShards   int
	minDepth      int
	stats         stats.Collector
	logger        *zap.Logger
	closed        atomic.Bool

	// writeMu serializes read-merge-write cycles on shards.
	writeMu sync.Mutex
}

// New returns a Cache over the store given by WithStore.
func New(opts ...Option) (*Cache, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return newCache(cfg)
}

func newCache(cfg options) (*Cache, error) {
	if cfg.store == nil {
		return nil, ErrNoStore
	}
	if cfg.totalShards <= 0 {
		return nil, fmt.Errorf("evalcache: invalid shard count %d", cfg.totalShards)
	}
	c := &Cache{
		store:         cfg.store,
		shardStrategy: cfg.shardStrategy,
		totalShards:   cfg.totalShards,
		minDepth:      cfg.minDepth,
		stats:         cfg.stats,
		logger:        cfg.logger.Named("evalcache"),
	}
	c.logger.Debug("cache initialized",
		zap.Int("totalShards", c.totalShards),
		zap.String("shardStrategy", c.shardStrategy.Name()),
	)
	return c, nil
}

// Open returns a Cache over the directory dir, creating its manifest if it
// has none. The manifest fixes the shard count, strategy and compression.
func Open(dir string, opts ...Option) (*Cache, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	m, err := loadOrCreateManifest(dir)
	if err != nil {
		return nil, err
	}
	st, err := openDiskStore(dir, m.Compression, cfg.shardCache, cfg.stats)
	if err != nil {
		return nil, err
	}
	strategy, err := StrategyByName(m.Strategy)
	if err != nil {
		return nil, err
	}

	cfg.store = st
	cfg.shardStrategy = strategy
	cfg.totalShards = m.TotalShards
	return newCache(cfg)
}

// Lookup returns the cached evaluation of fen, with PositionIndex zero.
func (c *Cache) Lookup(ctx context.Context, fenStr string) (model.Entry, error) {
	if c.closed.Load() {
		return model.Entry{}, ErrClosed
	}
	key, err := fen.Normalize(fenStr)
	if err != nil {
		return model.Entry{}, fmt.Errorf("normalizing %q: %w", fenStr, err)
	}

	c.stats.IncCounter(stats.MetricCacheLookups, 1)
	shardID := c.shardStrategy.ShardID(key, c.totalShards)
	data, err := c.fetchShard(ctx, shardID)
	if err != nil {
		return model.Entry{}, err
	}

	entry, ok, err := c.find(data, key)
	if err != nil {
		return model.Entry{}, fmt.Errorf("searching shard %d: %w", shardID, err)
	}
	if !ok {
		c.stats.IncCounter(stats.MetricCacheMisses, 1)
		return model.Entry{}, ErrNotFound
	}
	c.stats.IncCounter(stats.MetricCacheHits, 1)
	return entry, nil
}

// LookupAll returns cached evaluations for every analysed position of a
// game, that is every position but the last. Each shard is read once.
// Positions without a usable record are left absent.
func (c *Cache) LookupAll(ctx context.Context, positions []model.Position) (*model.Evaluations, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	n := len(positions) - 1
	if n <= 0 {
		return model.NewEvaluations(0), nil
	}

	evals := model.NewEvaluations(n)
	groups := c.group(positions[:n])
	for shardID, members := range groups {
		data, err := c.fetchShard(ctx, shardID)
		if err != nil {
			return evals, err
		}
		for _, m := range members {
			c.stats.IncCounter(stats.MetricCacheLookups, 1)
			entry, ok, err := c.find(data, m.key)
			if err != nil {
				return evals, fmt.Errorf("searching shard %d: %w", shardID, err)
			}
			if !ok {
				c.stats.IncCounter(stats.MetricCacheMisses, 1)
				continue
			}
			c.stats.IncCounter(stats.MetricCacheHits, 1)
			entry.PositionIndex = m.index
			evals.Entries[m.index] = entry
		}
	}
	return evals, nil
}

// Put caches entry as the evaluation of fen, unless a deeper one is stored.
func (c *Cache) Put(ctx context.Context, fenStr string, entry model.Entry) error {
	return c.PutAll(ctx, []model.Position{{FEN: fenStr}}, &model.Evaluations{Entries: []model.Entry{entry}})
}

// PutAll caches every present entry of evals against the position at the
// same index. Absent entries are skipped.
func (c *Cache) PutAll(ctx context.Context, positions []model.Position, evals *model.Evaluations) error {
	if c.closed.Load() {
		return ErrClosed
	}

	records := make(map[int][]search.Record)
	for i := 0; i < evals.Len() && i < len(positions); i++ {
		entry, ok := evals.At(i)
		if !ok {
			continue
		}
		key, err := fen.Normalize(positions[i].FEN)
		if err != nil {
			continue
		}
		shardID := c.shardStrategy.ShardID(key, c.totalShards)
		records[shardID] = append(records[shardID], search.FromEntry(key, entry))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for shardID, incoming := range records {
		if err := c.mergeShard(ctx, shardID, incoming); err != nil {
			return fmt.Errorf("writing shard %d: %w", shardID, err)
		}
	}
	return nil
}

// Close releases the store. After Close, the cache should not be used.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Store returns the shard store.
func (c *Cache) Store() store.Store {
	return c.store
}

// ShardStrategy returns the sharding strategy.
func (c *Cache) ShardStrategy() shard.Strategy {
	return c.shardStrategy
}

// TotalShards returns the number of shards.
func (c *Cache) TotalShards() int {
	return c.totalShards
}

type member struct {
	index int
	key   string
}

// group buckets positions by shard. Positions whose FEN cannot be
// normalized are skipped.
func (c *Cache) group(positions []model.Position) map[int][]member {
	groups := make(map[int][]member)
	for i, p := range positions {
		key, err := fen.Normalize(p.FEN)
		if err != nil {
			continue
		}
		id := c.shardStrategy.ShardID(key, c.totalShards)
		groups[id] = append(groups[id], member{index: i, key: key})
	}
	return groups
}

// fetchShard reads a shard. A missing shard reads as empty.
func (c *Cache) fetchShard(ctx context.Context, shardID int) ([]byte, error) {
	c.stats.IncCounter(stats.MetricCacheShardFetches, 1)
	data, err := c.store.ReadShard(ctx, shardID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching shard %d: %w", shardID, err)
	}
	return data, nil
}

func (c *Cache) find(data []byte, key string) (model.Entry, bool, error) {
	record, err := search.Search(data, key)
	if errors.Is(err, search.ErrNotFound) {
		return model.Entry{}, false, nil
	}
	if err != nil {
		return model.Entry{}, false, err
	}
	if record.Depth <= 0 || record.Depth < c.minDepth {
		return model.Entry{}, false, nil
	}
	return record.Entry(0), true, nil
}

func (c *Cache) mergeShard(ctx context.Context, shardID int, incoming []search.Record) error {
	data, err := c.fetchShard(ctx, shardID)
	if err != nil {
		return err
	}
	existing, err := search.Decode(data)
	if err != nil {
		return err
	}
	merged, changed := search.Merge(existing, incoming)
	if !changed {
		return nil
	}
	out, err := search.Encode(merged)
	if err != nil {
		return err
	}
	if err := c.store.WriteShard(ctx, shardID, out); err != nil {
		return err
	}
	c.logger.Debug("shard updated", zap.Int("shard", shardID), zap.Int("records", len(merged)))
	return nil
}
