package config

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/reportstore"
	"github.com/discochess/gamereview/internal/reportstore/memory"
	"github.com/discochess/gamereview/internal/reportstore/mongostore"
	"github.com/discochess/gamereview/internal/stats"
	statslogger "github.com/discochess/gamereview/internal/stats/logger"
	statsprom "github.com/discochess/gamereview/internal/stats/prometheus"
	"github.com/discochess/gamereview/internal/store"
	"github.com/discochess/gamereview/internal/store/gcsstore"
	"github.com/discochess/gamereview/internal/store/redisstore"
	"github.com/discochess/gamereview/internal/store/s3store"
)

// NewLogger builds the zap logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// NewCollector returns the stats sink named by c.Metrics. Prometheus
// metrics are registered with reg.
func (c *Config) NewCollector(logger *zap.Logger, reg prometheus.Registerer) stats.Collector {
	switch c.Metrics {
	case "prometheus":
		return statsprom.New(reg)
	case "log":
		return statslogger.New(logger)
	}
	return stats.NewNoop()
}

// CacheMinDepth is the shallowest cached depth served or imported: the
// larger of cache.min_depth and search.min_depth.
func (c *Config) CacheMinDepth() int {
	return max(c.Cache.MinDepth, c.Search.WithDefaults().MinDepth)
}

// OpenCache opens the evaluation cache with its floor raised to
// CacheMinDepth, or returns nil for backend none.
func (c *Config) OpenCache(ctx context.Context, collector stats.Collector, logger *zap.Logger) (*evalcache.Cache, error) {
	cc := c.Cache
	cc.MinDepth = c.CacheMinDepth()
	return cc.OpenCache(ctx, collector, logger)
}

// OpenCache opens the evaluation cache, or returns nil for backend none.
func (c CacheConfig) OpenCache(ctx context.Context, collector stats.Collector, logger *zap.Logger) (*evalcache.Cache, error) {
	common := []evalcache.Option{
		evalcache.WithShardCache(c.ShardCache),
		evalcache.WithMinDepth(c.MinDepth),
		evalcache.WithStats(collector),
		evalcache.WithLogger(logger),
	}
	if c.Backend == "none" || c.Backend == "" {
		return nil, nil
	}
	if c.Backend == "disk" {
		return evalcache.Open(c.Dir, common...)
	}

	st, err := c.remoteStore(ctx)
	if err != nil {
		return nil, err
	}
	st, err = evalcache.CachedStore(st, c.ShardCache, collector)
	if err != nil {
		return nil, err
	}
	strategy, err := evalcache.StrategyByName(c.Strategy)
	if err != nil {
		return nil, err
	}
	return evalcache.New(append(common,
		evalcache.WithStore(st),
		evalcache.WithShardStrategy(strategy),
		evalcache.WithTotalShards(c.TotalShards),
	)...)
}

func (c CacheConfig) remoteStore(ctx context.Context) (store.Store, error) {
	codec, err := evalcache.CodecByName(c.Compression)
	if err != nil {
		return nil, err
	}
	switch c.Backend {
	case "gcs":
		return gcsstore.New(ctx, c.Bucket, codec, gcsstore.WithPrefix(c.Prefix))
	case "s3":
		opts := []s3store.Option{s3store.WithPrefix(c.Prefix)}
		if c.Region != "" {
			opts = append(opts, s3store.WithRegion(c.Region))
		}
		if c.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(c.Endpoint))
		}
		return s3store.New(ctx, c.Bucket, codec, opts...)
	case "redis":
		opts := []redisstore.Option{redisstore.WithTTL(c.TTL)}
		if c.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(c.Prefix))
		}
		return redisstore.New(ctx, c.Addr, codec, opts...)
	}
	return nil, fmt.Errorf("unknown cache backend %q", c.Backend)
}

// OpenReportStore opens the store reviews requested over HTTP are kept in.
func (c ServerConfig) OpenReportStore(ctx context.Context, logger *zap.Logger) (reportstore.Store, error) {
	if c.Reports == "mongo" {
		return mongostore.New(ctx, c.MongoURI,
			mongostore.WithDatabase(c.MongoDatabase),
			mongostore.WithLogger(logger),
		)
	}
	return memory.New(), nil
}
