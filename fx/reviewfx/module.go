// Package reviewfx provides fx modules for a configured game reviewer.
package reviewfx

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/gamereview"
	"github.com/discochess/gamereview/internal/config"
	"github.com/discochess/gamereview/internal/engine"
	"github.com/discochess/gamereview/internal/engine/ucipool"
	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/stats"
)

// Module provides a *gamereview.Reviewer and its cache and stats.
// Requires a *config.Config, a *zap.Logger and an engine.Evaluator.
var Module = fx.Module("gamereview",
	fx.Provide(
		newRegistry,
		newStatsCollector,
		newCache,
		newReviewer,
	),
)

// EngineModule provides the engine.Evaluator named by the configuration:
// one engine process, or a pool of them when engine.workers exceeds one.
var EngineModule = fx.Module("gamereview.engine",
	fx.Provide(newEvaluator),
)

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func newStatsCollector(cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) stats.Collector {
	return cfg.NewCollector(log.Named("gamereview.stats"), reg)
}

// CacheParams holds dependencies for opening the evaluation cache.
type CacheParams struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// CacheResult holds the cache, nil when caching is off.
type CacheResult struct {
	fx.Out

	Cache *evalcache.Cache
}

func newCache(p CacheParams) (CacheResult, error) {
	cache, err := p.Config.OpenCache(context.Background(), p.Collector, p.Logger)
	if err != nil {
		return CacheResult{}, fmt.Errorf("opening evaluation cache: %w", err)
	}
	if cache != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return cache.Close()
			},
		})
	}
	return CacheResult{Cache: cache}, nil
}

// Params holds dependencies for creating the reviewer.
type Params struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Evaluator engine.Evaluator
	Cache     *evalcache.Cache
	Lifecycle fx.Lifecycle
}

// Result holds the provided reviewer.
type Result struct {
	fx.Out

	Reviewer *gamereview.Reviewer
}

func newReviewer(p Params) (Result, error) {
	opts := []gamereview.Option{
		gamereview.WithEvaluator(p.Evaluator),
		gamereview.WithEngineConfig(p.Config.Search),
		gamereview.WithClassifierConfig(p.Config.ClassifierConfig()),
		gamereview.WithStats(p.Collector),
		gamereview.WithLogger(p.Logger.Named("gamereview")),
	}
	if p.Cache != nil {
		opts = append(opts, gamereview.WithCache(p.Cache))
	}

	r, err := gamereview.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Close()
		},
	})
	return Result{Reviewer: r}, nil
}

// EvaluatorParams holds dependencies for starting the engine.
type EvaluatorParams struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

func newEvaluator(p EvaluatorParams) (engine.Evaluator, error) {
	ec := p.Config.Engine
	if ec.Workers > 1 {
		pool, err := ucipool.New(ec.Path,
			ucipool.WithConfig(p.Config.Search),
			ucipool.WithWorkers(ec.Workers),
			ucipool.WithHash(ec.Hash),
			ucipool.WithThreads(ec.Threads),
			ucipool.WithLogger(p.Logger),
			ucipool.WithStats(p.Collector),
		)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return pool.Close()
			},
		})
		return pool, nil
	}

	proc, err := engine.StartProcess(context.Background(), ec.Path)
	if err != nil {
		return nil, err
	}
	e := engine.New(proc,
		engine.WithConfig(p.Config.Search),
		engine.WithLogger(p.Logger),
		engine.WithStats(p.Collector),
	)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return handshake(ctx, e)
		},
		OnStop: func(ctx context.Context) error {
			return e.Close()
		},
	})
	return e, nil
}

type session interface {
	Handshake(ctx context.Context) error
	Close() error
}

// handshake closes s when the handshake fails. fx skips the OnStop hook of a
// failed OnStart, so nothing else would stop the engine process.
func handshake(ctx context.Context, s session) error {
	if err := s.Handshake(ctx); err != nil {
		s.Close()
		return fmt.Errorf("engine handshake: %w", err)
	}
	return nil
}
