// Package engine drives a UCI chess engine through the positions of a game.
//
// An Engine owns one Conn and delivers every output line to the task that
// is currently attached. Starting a task swaps the attachment atomically,
// so callbacks from a superseded task can never touch the new task's
// cursor. Each task wraps a Session, the state machine that decides what to
// send next.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/stats"
)

// Evaluator turns a list of positions into evaluations.
type Evaluator interface {
	Evaluate(ctx context.Context, positions []model.Position) (*model.Evaluations, error)
}

// Compile-time check that Engine implements Evaluator.
var _ Evaluator = (*Engine)(nil)

// handler consumes engine output on behalf of one attached task.
type handler interface {
	handle(line string)
	fail(err error)
}

type slot struct {
	h handler
}

// Engine serializes analysis sessions over a single Conn.
type Engine struct {
	conn   Conn
	cfg    Config
	logger *zap.Logger
	stats  stats.Collector

	current atomic.Pointer[slot]
	sendMu  sync.Mutex

	pumpOnce sync.Once
	exited   chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the search configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg.WithDefaults()
	}
}

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStats sets the stats collector. If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return func(e *Engine) {
		e.stats = c
	}
}

// New returns an Engine that owns conn.
func New(conn Conn, opts ...Option) *Engine {
	e := &Engine{
		conn:   conn,
		cfg:    Config{}.WithDefaults(),
		logger: zap.NewNop(),
		stats:  stats.NewNoop(),
		exited: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the search configuration in use.
func (e *Engine) Config() Config {
	return e.cfg
}

// Handshake performs the uci/uciok and isready/readyok exchange.
func (e *Engine) Handshake(ctx context.Context) error {
	for _, step := range []struct{ send, want string }{
		{"uci", "uciok"},
		{"isready", "readyok"},
	} {
		w := &lineWaiter{want: step.want, found: make(chan struct{})}
		e.attach(w)
		if err := e.send(step.send); err != nil {
			e.detach(w)
			return err
		}
		err := w.wait(ctx)
		e.detach(w)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", step.want, err)
		}
	}
	e.logger.Debug("engine handshake complete")
	return nil
}

// Start begins analysing positions and returns immediately. Any task
// already running on this engine fails with ErrSuperseded.
func (e *Engine) Start(positions []model.Position) *Task {
	t := &Task{
		engine:   e,
		session:  NewSession(positions, e.cfg),
		done:     make(chan struct{}),
		activity: make(chan struct{}, 1),
		started:  time.Now(),
	}

	cmds := t.session.Start()
	if t.session.Done() {
		t.finish(nil)
		return t
	}

	select {
	case <-e.exited:
		t.finish(ErrEngineExited)
		return t
	default:
	}

	e.attach(t)
	e.stats.IncCounter(stats.MetricSessions, 1)
	e.logger.Debug("session started", zap.Int("positions", len(positions)))

	for _, cmd := range cmds {
		if err := e.sendAs(t, cmd); err != nil {
			t.finish(err)
			return t
		}
	}
	return t
}

// Analyze runs a session to completion. See Task.Wait.
func (e *Engine) Analyze(ctx context.Context, positions []model.Position) (*model.Evaluations, error) {
	return e.Start(positions).Wait(ctx)
}

// Evaluate implements Evaluator.
func (e *Engine) Evaluate(ctx context.Context, positions []model.Position) (*model.Evaluations, error) {
	return e.Analyze(ctx, positions)
}

// Close fails the current task and closes the connection.
func (e *Engine) Close() error {
	if s := e.current.Swap(nil); s != nil {
		s.h.fail(ErrClosedConn)
	}
	return e.conn.Close()
}

func (e *Engine) attach(h handler) {
	e.pumpOnce.Do(func() { go e.pump() })
	if prev := e.current.Swap(&slot{h: h}); prev != nil {
		prev.h.fail(ErrSuperseded)
	}
}

// detach clears the attachment if h is still the one attached.
func (e *Engine) detach(h handler) {
	if s := e.current.Load(); s != nil && s.h == h {
		e.current.CompareAndSwap(s, nil)
	}
}

func (e *Engine) send(cmd string) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	e.logger.Debug("engine <", zap.String("cmd", cmd))
	return e.conn.Send(cmd)
}

// sendAs sends cmd on behalf of t, dropping it if t has already resolved.
func (e *Engine) sendAs(t *Task, cmd string) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	if t.finished.Load() {
		return nil
	}
	e.logger.Debug("engine <", zap.String("cmd", cmd))
	return e.conn.Send(cmd)
}

func (e *Engine) pump() {
	for line := range e.conn.Lines() {
		if s := e.current.Load(); s != nil {
			s.h.handle(line)
			continue
		}
		e.stats.IncCounter(stats.MetricLinesIgnored, 1)
	}
	close(e.exited)
	if s := e.current.Swap(nil); s != nil {
		s.h.fail(ErrEngineExited)
	}
}

// Task is an in-flight session. It resolves once, to evaluations and an error.
type Task struct {
	engine  *Engine
	started time.Time

	mu      sync.Mutex
	session *Session

	activity chan struct{}
	done     chan struct{}
	once     sync.Once
	finished atomic.Bool
	err      error
}

func (t *Task) handle(line string) {
	if t.finished.Load() {
		return
	}

	t.mu.Lock()
	cmds := t.session.Step(line)
	done := t.session.Done()
	t.mu.Unlock()

	select {
	case t.activity <- struct{}{}:
	default:
	}

	for _, cmd := range cmds {
		if err := t.engine.sendAs(t, cmd); err != nil {
			t.finish(err)
			return
		}
	}
	if done {
		t.finish(nil)
	}
}

func (t *Task) fail(err error) {
	t.finish(err)
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		t.finished.Store(true)
		t.engine.detach(t)
		defer close(t.done)

		t.mu.Lock()
		evaluated := t.session.Evaluations().Count()
		ignored := t.session.Ignored()
		t.mu.Unlock()

		e := t.engine
		e.stats.IncCounter(stats.MetricPositionsEvaluated, int64(evaluated))
		e.stats.IncCounter(stats.MetricLinesIgnored, int64(ignored))
		e.stats.ObserveHistogram(stats.MetricSessionSeconds, time.Since(t.started).Seconds())
		if err != nil {
			e.logger.Warn("session ended early", zap.Error(err), zap.Int("evaluated", evaluated))
			return
		}
		e.logger.Debug("session complete", zap.Int("evaluated", evaluated), zap.Int("ignored", ignored))
	})
}

// Done is closed when the task has resolved.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task resolves, ctx ends or the engine's idle
// timeout elapses. It always returns the evaluations recorded so far; the
// error distinguishes an incomplete session from a finished one.
func (t *Task) Wait(ctx context.Context) (*model.Evaluations, error) {
	var idle <-chan time.Time
	var timer *time.Timer
	if d := t.engine.cfg.IdleTimeout; d > 0 {
		timer = time.NewTimer(d)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-t.done:
			return t.result()
		case <-t.activity:
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(t.engine.cfg.IdleTimeout)
			}
		case <-idle:
			t.finish(fmt.Errorf("%w: no output for %s", ErrStalled, t.engine.cfg.IdleTimeout))
			return t.result()
		case <-ctx.Done():
			t.finish(fmt.Errorf("%w: %w", ErrStalled, ctx.Err()))
			return t.result()
		}
	}
}

func (t *Task) result() (*model.Evaluations, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Evaluations().Clone(), t.err
}

// lineWaiter resolves when a specific line arrives.
type lineWaiter struct {
	want  string
	found chan struct{}
	once  sync.Once
	err   error
}

func (w *lineWaiter) handle(line string) {
	if line == w.want {
		w.once.Do(func() { close(w.found) })
	}
}

func (w *lineWaiter) fail(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.found)
	})
}

func (w *lineWaiter) wait(ctx context.Context) error {
	select {
	case <-w.found:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
