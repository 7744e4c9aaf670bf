package gamereview

import (
	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/classify"
	"github.com/discochess/gamereview/internal/engine"
	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/stats"
)

// Option configures a Reviewer.
type Option interface {
	apply(*options)
}

// options holds the reviewer configuration.
type options struct {
	evaluator  engine.Evaluator
	conn       engine.Conn
	engine     engine.Config
	cache      *evalcache.Cache
	classifier classify.Config
	stats      stats.Collector
	logger     *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		classifier: classify.Default(),
		stats:      stats.NewNoop(),
		logger:     zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithEvaluator sets the evaluator positions are scored with.
// It takes precedence over WithConn.
func WithEvaluator(e engine.Evaluator) Option {
	return optionFunc(func(o *options) {
		o.evaluator = e
	})
}

// WithConn drives a UCI engine over conn. The Reviewer owns the
// connection and closes it on Close.
func WithConn(c engine.Conn) Option {
	return optionFunc(func(o *options) {
		o.conn = c
	})
}

// WithCache serves evaluations from c when it holds them and records new
// ones. The cache stays open after Close.
func WithCache(c *evalcache.Cache) Option {
	return optionFunc(func(o *options) {
		o.cache = c
	})
}

// WithClassifierConfig sets the thresholds and checks moves are graded by.
// If not set, classify.Default is used.
func WithClassifierConfig(cfg classify.Config) Option {
	return optionFunc(func(o *options) {
		o.classifier = cfg
	})
}

// WithSearchDepth sets the depth the engine searches each position to.
// It applies to engines started by Open or WithConn.
func WithSearchDepth(d int) Option {
	return optionFunc(func(o *options) {
		o.engine.SearchDepth = d
	})
}

// WithMinDepth sets the shallowest depth whose score is kept.
// It applies to engines started by Open or WithConn.
func WithMinDepth(d int) Option {
	return optionFunc(func(o *options) {
		o.engine.MinDepth = d
	})
}

// WithEngineConfig replaces the whole engine configuration.
func WithEngineConfig(cfg engine.Config) Option {
	return optionFunc(func(o *options) {
		o.engine = cfg
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
