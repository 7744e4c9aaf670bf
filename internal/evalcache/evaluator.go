package evalcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/engine"
	"github.com/discochess/gamereview/internal/model"
)

// Compile-time check that Evaluator implements engine.Evaluator.
var _ engine.Evaluator = (*Evaluator)(nil)

// Evaluator answers from the cache when every analysed position of a game
// is cached and otherwise delegates the whole game to another Evaluator,
// caching what it returns.
type Evaluator struct {
	cache    *Cache
	next     engine.Evaluator
	minDepth int
}

// NewEvaluator returns an Evaluator reading through c to next. Cached
// entries searched shallower than minDepth count as misses, whatever the
// cache's own floor is.
func NewEvaluator(c *Cache, next engine.Evaluator, minDepth int) *Evaluator {
	return &Evaluator{cache: c, next: next, minDepth: minDepth}
}

// Evaluate implements engine.Evaluator. A cache read failure is logged and
// treated as a miss. Partial results from next are cached before its error
// is returned.
func (e *Evaluator) Evaluate(ctx context.Context, positions []model.Position) (*model.Evaluations, error) {
	if len(positions) < engine.MinPositions {
		return e.next.Evaluate(ctx, positions)
	}

	cached, err := e.cache.LookupAll(ctx, positions)
	if err == nil {
		e.dropShallow(cached)
	}
	switch {
	case err != nil:
		e.cache.logger.Warn("cache lookup failed", zap.Error(err))
	case cached.Count() == cached.Len():
		e.cache.logger.Debug("game served from cache", zap.Int("positions", cached.Len()))
		return cached, nil
	}

	evals, evalErr := e.next.Evaluate(ctx, positions)
	if evals != nil && evals.Count() > 0 {
		if err := e.cache.PutAll(ctx, positions, evals); err != nil {
			e.cache.logger.Warn("cache write failed", zap.Error(err))
		}
	}
	fill(evals, cached)
	return evals, evalErr
}

// dropShallow marks entries below the minimum depth absent.
func (e *Evaluator) dropShallow(evals *model.Evaluations) {
	for i := 0; i < evals.Len(); i++ {
		if entry, ok := evals.At(i); ok && entry.Depth < e.minDepth {
			evals.Entries[i] = model.Entry{PositionIndex: i}
		}
	}
}

// fill copies entries of cached into the absent slots of evals.
func fill(evals, cached *model.Evaluations) {
	for i := 0; i < evals.Len(); i++ {
		if _, ok := evals.At(i); ok {
			continue
		}
		if c, ok := cached.At(i); ok {
			if m := evals.Entries[i].BestMove; m != "" {
				c.BestMove = m
			}
			evals.Entries[i] = c
		}
	}
}
