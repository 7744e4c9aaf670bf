// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the module.
const (
	// Review metrics.
	MetricReviews         = "gamereview_reviews_total"
	MetricReviewFailures  = "gamereview_review_failures_total"
	MetricReviewSeconds   = "gamereview_review_seconds"
	MetricMovesClassified = "gamereview_moves_classified_total"
	MetricBlunders        = "gamereview_blunders_total"

	// Engine metrics.
	MetricSessions           = "gamereview_engine_sessions_total"
	MetricPositionsEvaluated = "gamereview_positions_evaluated_total"
	MetricLinesIgnored       = "gamereview_engine_lines_ignored_total"
	MetricSessionSeconds     = "gamereview_engine_session_seconds"

	// Evaluation cache metrics.
	MetricCacheLookups      = "gamereview_cache_lookups_total"
	MetricCacheHits         = "gamereview_cache_hits_total"
	MetricCacheMisses       = "gamereview_cache_misses_total"
	MetricCacheShardFetches = "gamereview_cache_shard_fetches_total"

	// Shard cache metrics.
	MetricShardCacheHits   = "gamereview_shard_cache_hits_total"
	MetricShardCacheMisses = "gamereview_shard_cache_misses_total"
	MetricCacheSize        = "gamereview_shard_cache_size"
)

var help = map[string]string{
	MetricReviews:            "Game reviews started.",
	MetricReviewFailures:     "Game reviews that ended with an error.",
	MetricReviewSeconds:      "Wall time of a full game review.",
	MetricMovesClassified:    "Moves assigned a severity.",
	MetricBlunders:           "Moves classified as blunders.",
	MetricSessions:           "Engine evaluation sessions started.",
	MetricPositionsEvaluated: "Positions that received an evaluation at the minimum depth.",
	MetricLinesIgnored:       "Engine output lines that did not change a session.",
	MetricSessionSeconds:     "Wall time of one engine evaluation session.",
	MetricCacheLookups:       "Evaluation cache lookups.",
	MetricCacheHits:          "Evaluation cache lookups answered from a shard.",
	MetricCacheMisses:        "Evaluation cache lookups that fell through to the engine.",
	MetricCacheShardFetches:  "Shard reads from the backing store.",
	MetricShardCacheHits:     "Shard reads served from memory.",
	MetricShardCacheMisses:   "Shard reads that went to the backing store.",
	MetricCacheSize:          "Decoded shards held in memory.",
}

// Help returns the description for a metric name, or the name itself.
func Help(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
