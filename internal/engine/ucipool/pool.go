// Package ucipool evaluates positions on a pool of engine processes driven
// by github.com/freeeve/uci. Each process searches one position at a time,
// so a game's positions are spread across the pool.
package ucipool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/uci"
	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/engine"
	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/stats"
)

// DefaultWorkers is the pool size when WithWorkers is not given.
const DefaultWorkers = 2

// ErrClosed indicates the pool has been closed.
var ErrClosed = errors.New("ucipool: pool closed")

// searcher is the part of *uci.Engine the pool uses.
type searcher interface {
	SetFEN(fen string) error
	GoDepth(depth int, resultOpts ...uint) (*uci.Results, error)
}

// Pool implements engine.Evaluator over several engine processes.
type Pool struct {
	cfg    engine.Config
	logger *zap.Logger
	stats  stats.Collector

	idle    chan searcher
	engines []*uci.Engine

	mu     sync.RWMutex
	closed bool
}

// Compile-time check that Pool implements engine.Evaluator.
var _ engine.Evaluator = (*Pool)(nil)

type options struct {
	cfg     engine.Config
	workers int
	hashMB  int
	threads int
	logger  *zap.Logger
	stats   stats.Collector
}

// Option configures a Pool.
type Option func(*options)

// WithConfig sets the search configuration.
func WithConfig(cfg engine.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithWorkers sets the number of engine processes.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithHash sets each process's hash table size in megabytes.
func WithHash(mb int) Option {
	return func(o *options) {
		if mb > 0 {
			o.hashMB = mb
		}
	}
}

// WithThreads sets each process's search thread count.
func WithThreads(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threads = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(o *options) {
		o.stats = c
	}
}

func defaultOptions() options {
	return options{
		workers: DefaultWorkers,
		hashMB:  64,
		threads: 1,
		logger:  zap.NewNop(),
		stats:   stats.NewNoop(),
	}
}

// New starts the engine at path once per worker.
func New(path string, opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg = o.cfg.WithDefaults()

	engines := make([]*uci.Engine, 0, o.workers)
	searchers := make([]searcher, 0, o.workers)
	for i := 0; i < o.workers; i++ {
		eng, err := uci.NewEngine(path)
		if err != nil {
			closeAll(engines)
			return nil, fmt.Errorf("starting engine %d: %w", i, err)
		}
		err = eng.SetOptions(uci.Options{
			Hash:    o.hashMB,
			Threads: o.threads,
			MultiPV: o.cfg.MultiPV,
			Ponder:  false,
			OwnBook: false,
		})
		if err != nil {
			eng.Close()
			closeAll(engines)
			return nil, fmt.Errorf("configuring engine %d: %w", i, err)
		}
		engines = append(engines, eng)
		searchers = append(searchers, eng)
	}

	p := newPool(searchers, o)
	p.engines = engines
	p.logger.Info("engine pool started",
		zap.String("path", path),
		zap.Int("workers", o.workers),
		zap.Int("searchDepth", o.cfg.SearchDepth),
	)
	return p, nil
}

func newPool(searchers []searcher, o options) *Pool {
	idle := make(chan searcher, len(searchers))
	for _, s := range searchers {
		idle <- s
	}
	return &Pool{
		cfg:    o.cfg.WithDefaults(),
		logger: o.logger.Named("ucipool"),
		stats:  o.stats,
		idle:   idle,
	}
}

// Evaluate searches every position but the last. Positions are handed to
// idle workers in order; a cancelled context stops new searches and the
// evaluations gathered so far are returned with the context's error.
func (p *Pool) Evaluate(ctx context.Context, positions []model.Position) (*model.Evaluations, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	if len(positions) < engine.MinPositions {
		return model.NewEvaluations(0), nil
	}

	start := time.Now()
	p.stats.IncCounter(stats.MetricSessions, 1)
	defer func() {
		p.stats.ObserveHistogram(stats.MetricSessionSeconds, time.Since(start).Seconds())
	}()

	n := len(positions) - 1
	evals := model.NewEvaluations(n)

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for i := 0; i < n; i++ {
		var s searcher
		if ctx.Err() == nil {
			select {
			case s = <-p.idle:
			case <-ctx.Done():
			}
		}
		if s == nil {
			setErr(fmt.Errorf("%w: %w", engine.ErrStalled, ctx.Err()))
			break
		}

		wg.Add(1)
		go func(i int, s searcher) {
			defer wg.Done()
			defer func() { p.idle <- s }()

			entry, err := p.search(s, positions[i].FEN)
			if err != nil {
				setErr(fmt.Errorf("position %d: %w", i, err))
				return
			}
			entry.PositionIndex = i
			// Each goroutine owns slot i.
			evals.Entries[i] = entry
		}(i, s)
	}
	wg.Wait()

	p.stats.IncCounter(stats.MetricPositionsEvaluated, int64(evals.Count()))
	if firstErr != nil {
		p.logger.Warn("evaluation incomplete",
			zap.Int("evaluated", evals.Count()),
			zap.Int("positions", n),
			zap.Error(firstErr),
		)
	}
	return evals, firstErr
}

// search evaluates one position. A result shallower than the minimum depth
// leaves the entry absent but keeps the best move.
func (p *Pool) search(s searcher, fenStr string) (model.Entry, error) {
	side, err := fen.SideToMove(fenStr)
	if err != nil {
		return model.Entry{}, err
	}
	if err := s.SetFEN(fenStr); err != nil {
		return model.Entry{}, fmt.Errorf("setting position: %w", err)
	}
	results, err := s.GoDepth(p.cfg.SearchDepth, uci.HighestDepthOnly)
	if err != nil {
		return model.Entry{}, fmt.Errorf("searching: %w", err)
	}

	var entry model.Entry
	if results == nil {
		return entry, nil
	}
	entry.BestMove = bestMove(results.BestMove)

	best, ok := principal(results.Results)
	if !ok {
		return entry, nil
	}
	if best.Depth < p.cfg.MinDepth {
		p.stats.IncCounter(stats.MetricLinesIgnored, 1)
		return entry, nil
	}
	entry.Depth = best.Depth
	entry.Score, entry.Mate = engine.Normalize(engine.Score{Mate: best.Mate, Value: best.Score}, side)
	return entry, nil
}

// principal returns the deepest first-variation result that is not a
// bound. Among equal depths the last one reported wins.
func principal(results []uci.ScoreResult) (uci.ScoreResult, bool) {
	var (
		best  uci.ScoreResult
		found bool
	)
	for _, r := range results {
		if r.Upperbound || r.Lowerbound || r.MultiPV > 1 {
			continue
		}
		if !found || r.Depth >= best.Depth {
			best, found = r, true
		}
	}
	return best, found
}

// bestMove maps the reply for positions without a legal move to an empty
// move.
func bestMove(m string) string {
	if m == engine.NoMove || m == engine.NullMove {
		return ""
	}
	return m
}

// Close stops every engine process. It waits for running evaluations.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	closeAll(p.engines)
	return nil
}

func closeAll(engines []*uci.Engine) {
	for _, e := range engines {
		e.Close()
	}
}
