package evalcache

import (
	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/shard"
	"github.com/discochess/gamereview/internal/shard/materialshard"
	"github.com/discochess/gamereview/internal/stats"
	"github.com/discochess/gamereview/internal/store"
)

// DefaultTotalShards suits a cache that grows one reviewed game at a time.
const DefaultTotalShards = 4096

// DefaultShardCache is how many decoded shards Open keeps in memory.
const DefaultShardCache = 256

// Option configures a Cache.
type Option interface {
	apply(*options)
}

type options struct {
	store         store.Store
	shardStrategy shard.Strategy
	totalShards   int
	shardCache    int
	minDepth      int
	stats         stats.Collector
	logger        *zap.Logger
}

func defaultOptions() options {
	return options{
		shardStrategy: materialshard.New(),
		totalShards:   DefaultTotalShards,
		shardCache:    DefaultShardCache,
		stats:         stats.NewNoop(),
		logger:        zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithStore sets the shard store. Open builds one from the cache directory.
func WithStore(s store.Store) Option {
	return optionFunc(func(o *options) {
		o.store = s
	})
}

// WithShardStrategy sets the sharding strategy. Open uses the manifest's.
func WithShardStrategy(s shard.Strategy) Option {
	return optionFunc(func(o *options) {
		o.shardStrategy = s
	})
}

// WithTotalShards sets the number of shards. Open uses the manifest's.
func WithTotalShards(n int) Option {
	return optionFunc(func(o *options) {
		o.totalShards = n
	})
}

// WithShardCache sets how many decoded shards Open keeps in memory.
// Zero disables the in-memory layer.
func WithShardCache(n int) Option {
	return optionFunc(func(o *options) {
		o.shardCache = n
	})
}

// WithMinDepth makes lookups treat shallower records as missing.
func WithMinDepth(d int) Option {
	return optionFunc(func(o *options) {
		o.minDepth = d
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
