// Package gamereview grades each move of a chess game by how much it
// changed the engine's evaluation.
//
// Example usage:
//
//	r, err := gamereview.Open(ctx, "/usr/bin/stockfish")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	reviews, err := r.ReviewPGN(ctx, strings.NewReader(pgn))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, m := range reviews[0].Report.Moves {
//	    fmt.Println(m.Ply, m.Severity)
//	}
package gamereview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/classify"
	"github.com/discochess/gamereview/internal/engine"
	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/game"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/stats"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the reviewer has been closed.
	ErrClosed = errors.New("gamereview: reviewer closed")

	// ErrNoEvaluator indicates neither an evaluator nor an engine was provided.
	ErrNoEvaluator = errors.New("gamereview: no evaluator provided")
)

// handshakeTimeout bounds the UCI handshake performed by Open.
const handshakeTimeout = 10 * time.Second

// Reviewer evaluates games and classifies their moves.
// A Reviewer is safe for concurrent use; reviews sharing one engine run
// one at a time.
type Reviewer struct {
	evaluator  engine.Evaluator
	engine     *engine.Engine
	classifier classify.Config
	stats      stats.Collector
	logger     *zap.Logger
	closed     atomic.Bool

	// owned is closed by Close.
	owned io.Closer
	jobs  chan struct{}
}

// GameReview is the review of one game from a PGN stream.
type GameReview struct {
	Title  string `json:"title"`
	White  string `json:"white,omitempty"`
	Black  string `json:"black,omitempty"`
	Result string `json:"result,omitempty"`

	// SAN holds the move that produced each position, "" for the first.
	SAN    []string `json:"san"`
	Report *Report  `json:"report"`
}

// New creates a Reviewer with the given options.
// An evaluator must be supplied with WithEvaluator or WithConn.
func New(opts ...Option) (*Reviewer, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	r := &Reviewer{
		classifier: cfg.classifier,
		stats:      cfg.stats,
		logger:     cfg.logger.Named("reviewer"),
		jobs:       make(chan struct{}, 1),
	}

	switch {
	case cfg.evaluator != nil:
		r.evaluator = cfg.evaluator
	case cfg.conn != nil:
		r.engine = engine.New(cfg.conn,
			engine.WithConfig(cfg.engine),
			engine.WithLogger(cfg.logger),
			engine.WithStats(cfg.stats),
		)
		r.evaluator = r.engine
		r.owned = r.engine
	default:
		return nil, ErrNoEvaluator
	}

	if cfg.cache != nil {
		r.evaluator = evalcache.NewEvaluator(cfg.cache, r.evaluator, cfg.engine.WithDefaults().MinDepth)
	}

	r.logger.Debug("reviewer initialized",
		zap.Bool("cached", cfg.cache != nil),
		zap.Float64("blunder", cfg.classifier.Blunder),
		zap.Bool("mateProximity", cfg.classifier.Checks.Has(classify.CheckMateProximity)),
	)
	return r, nil
}

// Open starts the UCI engine binary at path and returns a Reviewer driving it.
func Open(ctx context.Context, path string, opts ...Option) (*Reviewer, error) {
	proc, err := engine.StartProcess(context.WithoutCancel(ctx), path)
	if err != nil {
		return nil, err
	}

	r, err := New(append(opts, WithConn(proc))...)
	if err != nil {
		proc.Close()
		return nil, err
	}
	if r.engine == nil {
		// A caller-supplied evaluator won; the process is not needed.
		proc.Close()
		return r, nil
	}

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := r.engine.Handshake(hctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}
	return r, nil
}

// Review evaluates positions and classifies every move between them.
// Fewer than three positions yield an empty report. When evaluation fails
// part way, the report covers the positions evaluated so far, is marked
// Partial and is returned together with the error.
func (r *Reviewer) Review(ctx context.Context, positions []Position, outcome Outcome) (*Report, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if len(positions) < engine.MinPositions {
		return &Report{Positions: len(positions)}, nil
	}

	select {
	case r.jobs <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.jobs }()

	start := time.Now()
	r.stats.IncCounter(stats.MetricReviews, 1)
	defer func() {
		r.stats.ObserveHistogram(stats.MetricReviewSeconds, time.Since(start).Seconds())
	}()

	evals, evalErr := r.evaluator.Evaluate(ctx, positions)
	report := classify.Classify(positions, evals, outcome, r.classifier)

	r.stats.IncCounter(stats.MetricMovesClassified, int64(len(report.Moves)))
	if n := model.Counts(report.Moves)[model.Blunder]; n > 0 {
		r.stats.IncCounter(stats.MetricBlunders, int64(n))
	}

	if evalErr != nil {
		report.Partial = true
		r.stats.IncCounter(stats.MetricReviewFailures, 1)
		r.logger.Warn("review incomplete",
			zap.Int("positions", len(positions)),
			zap.Int("evaluated", report.Evaluated),
			zap.Error(evalErr),
		)
		return &report, fmt.Errorf("evaluating positions: %w", evalErr)
	}

	r.logger.Debug("review complete",
		zap.Int("positions", len(positions)),
		zap.Int("moves", len(report.Moves)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &report, nil
}

// ReviewFENs reviews a game given as consecutive FEN positions.
func (r *Reviewer) ReviewFENs(ctx context.Context, fens []string) (*Report, error) {
	g, err := game.FromFENs(fens)
	if err != nil {
		return nil, fmt.Errorf("parsing positions: %w", err)
	}
	return r.Review(ctx, g.Positions(), g.Outcome())
}

// ReviewPGN reviews every game in a PGN stream, in order. It stops at the
// first game that fails and returns the reviews finished before it; the
// failed game's partial review is included.
func (r *Reviewer) ReviewPGN(ctx context.Context, pgn io.Reader) ([]GameReview, error) {
	games, err := game.FromPGN(pgn)
	if err != nil {
		return nil, fmt.Errorf("parsing PGN: %w", err)
	}

	reviews := make([]GameReview, 0, len(games))
	for i, g := range games {
		report, err := r.Review(ctx, g.Positions(), g.Outcome())
		if report != nil {
			reviews = append(reviews, newGameReview(g, report))
		}
		if err != nil {
			return reviews, fmt.Errorf("game %d: %w", i+1, err)
		}
	}
	return reviews, nil
}

func newGameReview(g *game.Game, report *Report) GameReview {
	san := make([]string, len(g.Positions()))
	for i := range san {
		san[i] = g.MoveSAN(i)
	}
	return GameReview{
		Title:  g.Title(),
		White:  g.Tag("White"),
		Black:  g.Tag("Black"),
		Result: g.Tag("Result"),
		SAN:    san,
		Report: report,
	}
}

// Evaluate returns the evaluation of a single position.
func (r *Reviewer) Evaluate(ctx context.Context, fen string) (Entry, error) {
	if r.closed.Load() {
		return Entry{}, ErrClosed
	}
	// Sessions analyse every position but the last and need three.
	p := Position{FEN: fen}
	evals, err := r.evaluator.Evaluate(ctx, []Position{p, p, p})
	entry, _ := evals.At(0)
	if err != nil {
		return entry, fmt.Errorf("evaluating %q: %w", fen, err)
	}
	return entry, nil
}

// Close releases the engine started by Open or WithConn. Evaluators and
// caches passed in by the caller stay open.
func (r *Reviewer) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if r.owned != nil {
		if err := r.owned.Close(); err != nil {
			return fmt.Errorf("closing engine: %w", err)
		}
	}
	return nil
}
