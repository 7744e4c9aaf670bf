package builder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/search"
	"github.com/discochess/gamereview/internal/store"
)

const (
	// DefaultBatchSize is how many records are buffered before shards are written.
	DefaultBatchSize = 500000

	// DefaultWorkers is the number of shards written in parallel.
	DefaultWorkers = 4

	// DefaultSourceURL is the Lichess evaluation database.
	DefaultSourceURL = "https://database.lichess.org/lichess_db_eval.jsonl.zst"

	maxLineBytes = 10 * 1024 * 1024
)

// Builder seeds an evaluation cache with evaluations from a JSONL dump.
type Builder struct {
	cache     *evalcache.Cache
	minDepth  int
	batchSize int
	workers   int
	progress  ProgressFunc
	logger    *zap.Logger
}

// Option configures the Builder.
type Option func(*Builder)

// WithMinDepth skips evaluations searched shallower than d.
func WithMinDepth(d int) Option {
	return func(b *Builder) { b.minDepth = d }
}

// WithBatchSize sets how many records are buffered between shard writes.
func WithBatchSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithWorkers sets the number of shards written in parallel.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Builder) { b.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New returns a builder writing into c. The caller keeps ownership of c.
func New(c *evalcache.Cache, opts ...Option) *Builder {
	b := &Builder{
		cache:     c,
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("builder")
	return b
}

// Build reads evaluations from r and merges them into the cache. Each line
// is either a cache record or a Lichess evaluation database entry. Lines that
// are neither, or that fail WithMinDepth, are counted as skipped.
func (b *Builder) Build(ctx context.Context, r io.Reader) (Progress, error) {
	p := Progress{Phase: PhaseRead, StartTime: time.Now()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), maxLineBytes)

	pending := make(map[int][]search.Record)
	buffered := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		p.RecordsRead++

		rec, err := parseLine(line)
		if err != nil || rec.Depth < b.minDepth {
			p.RecordsSkipped++
			continue
		}
		id := b.cache.ShardStrategy().ShardID(rec.FEN, b.cache.TotalShards())
		pending[id] = append(pending[id], rec)
		buffered++

		if p.RecordsRead%100000 == 0 {
			b.report(p)
		}
		if buffered >= b.batchSize {
			if err := b.flush(ctx, pending, &p); err != nil {
				return p, err
			}
			pending = make(map[int][]search.Record)
			buffered = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return p, fmt.Errorf("reading source: %w", err)
	}
	if err := b.flush(ctx, pending, &p); err != nil {
		return p, err
	}

	p.Phase = PhaseDone
	b.report(p)
	b.logger.Info("cache seeded",
		zap.Int64("read", p.RecordsRead),
		zap.Int64("written", p.RecordsWritten),
		zap.Int64("skipped", p.RecordsSkipped),
		zap.Int("shards", p.ShardsWritten),
	)
	return p, nil
}

// flush merges every pending shard into the store.
func (b *Builder) flush(ctx context.Context, pending map[int][]search.Record, p *Progress) error {
	if len(pending) == 0 {
		return nil
	}
	ids := make([]int, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	p.Phase = PhaseShard
	b.report(*p)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	sem := make(chan struct{}, b.workers)
	for _, id := range ids {
		wg.Add(1)
		go func(id int, records []search.Record) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := b.writeShard(ctx, id, records)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("writing shard %d: %w", id, err)
				}
				return
			}
			p.RecordsWritten += int64(len(records))
			p.ShardsWritten++
			b.report(*p)
		}(id, pending[id])
	}
	wg.Wait()
	p.Phase = PhaseRead
	return firstErr
}

func (b *Builder) writeShard(ctx context.Context, id int, records []search.Record) error {
	st := b.cache.Store()
	data, err := st.ReadShard(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	existing, err := search.Decode(data)
	if err != nil {
		return err
	}
	merged, changed := search.Merge(existing, records)
	if !changed {
		return nil
	}
	out, err := search.Encode(merged)
	if err != nil {
		return err
	}
	return st.WriteShard(ctx, id, out)
}

func (b *Builder) report(p Progress) {
	if b.progress != nil {
		b.progress(p)
	}
}

// lichessEntry is one line of the Lichess evaluation database. Scores are
// centipawns from White's perspective.
type lichessEntry struct {
	FEN   string `json:"fen"`
	Evals []struct {
		Depth int `json:"depth"`
		PVs   []struct {
			CP   *int   `json:"cp"`
			Mate *int   `json:"mate"`
			Line string `json:"line"`
		} `json:"pvs"`
	} `json:"evals"`
}

// parseLine decodes a cache record or a Lichess entry into a record keyed
// by the normalized FEN.
func parseLine(line []byte) (search.Record, error) {
	var raw struct {
		lichessEntry
		Depth    int     `json:"depth"`
		Score    float64 `json:"score"`
		Mate     *int    `json:"mate"`
		BestMove string  `json:"best_move"`
	}
	if err := json.Unmarshal(line, &raw); err != nil {
		return search.Record{}, err
	}
	key, err := fen.Normalize(raw.FEN)
	if err != nil {
		return search.Record{}, err
	}
	if len(raw.Evals) == 0 {
		if raw.Depth <= 0 {
			return search.Record{}, errors.New("no evaluation")
		}
		return search.Record{FEN: key, Depth: raw.Depth, Score: raw.Score, Mate: raw.Mate, BestMove: raw.BestMove}, nil
	}
	return fromLichess(key, raw.lichessEntry)
}

// fromLichess keeps the principal variation of the deepest evaluation.
func fromLichess(key string, e lichessEntry) (search.Record, error) {
	best := -1
	for i, ev := range e.Evals {
		if len(ev.PVs) == 0 {
			continue
		}
		if best < 0 || ev.Depth > e.Evals[best].Depth {
			best = i
		}
	}
	if best < 0 {
		return search.Record{}, errors.New("no principal variation")
	}
	ev := e.Evals[best]
	pv := ev.PVs[0]

	rec := search.Record{FEN: key, Depth: ev.Depth}
	switch {
	case pv.Mate != nil:
		m := *pv.Mate
		rec.Mate = &m
		rec.Score = model.MateScore
		if m < 0 {
			rec.Score = -model.MateScore
		}
	case pv.CP != nil:
		rec.Score = model.ClampScore(float64(*pv.CP) / 100)
	default:
		return search.Record{}, errors.New("principal variation has no score")
	}
	if moves := strings.Fields(pv.Line); len(moves) > 0 {
		rec.BestMove = moves[0]
	}
	return rec, nil
}
