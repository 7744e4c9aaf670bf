package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/discochess/gamereview/internal/builder"
	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/search"
	"github.com/discochess/gamereview/internal/store"
	"github.com/discochess/gamereview/internal/store/diskstore"
	"github.com/discochess/gamereview/internal/store/gcsstore"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect an evaluation cache directory",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about the evaluation cache",
	Long: `Display statistics about the evaluation cache including:
- Shard layout from the manifest
- Number of shards and cached positions
- Total size on disk

Without --cache-dir, a gcs cache backend is listed from its bucket.`,
	Args: cobra.NoArgs,
	RunE: runCacheStats,
}

var cacheVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the integrity of the evaluation cache",
	Long: `Verify that every shard in the cache is valid.

This command checks:
- Each shard can be decompressed
- Each shard holds valid records
- Positions are sorted within each shard`,
	Args: cobra.NoArgs,
	RunE: runCacheVerify,
}

var cacheLookupCmd = &cobra.Command{
	Use:   "lookup [FEN]",
	Short: "Look up a cached evaluation without the engine",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheLookup,
}

var cacheImportCmd = &cobra.Command{
	Use:   "import [source]",
	Short: "Seed the evaluation cache from an evaluation dump",
	Long: `Import merges engine evaluations into the configured cache backend.
The source is a file, "-" for standard input, or an http(s) URL, and may be
compressed with zstd (.zst) or gzip (.gz). Each line is either a cache
record or an entry of the Lichess evaluation database. An existing
evaluation is only replaced by one searched at least as deep.

Examples:
  # Seed a local cache with the Lichess evaluation database
  gamereview cache import --cache-dir ./cache

  # Seed an S3 cache from a local dump
  GAMEREVIEW_CACHE_BACKEND=s3 GAMEREVIEW_CACHE_BUCKET=evals \
    gamereview cache import evals.jsonl.zst`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheImport,
}

var (
	importWorkers   int
	importBatchSize int
)

func init() {
	cacheImportCmd.Flags().IntVar(&importWorkers, "workers", builder.DefaultWorkers, "shards written in parallel")
	cacheImportCmd.Flags().IntVar(&importBatchSize, "batch-size", builder.DefaultBatchSize, "records buffered between shard writes")
	cacheCmd.AddCommand(cacheStatsCmd, cacheVerifyCmd, cacheLookupCmd, cacheImportCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCacheDir reads the manifest and shard store of the --cache-dir directory.
func openCacheDir() (*evalcache.Manifest, *diskstore.Store, error) {
	if cacheDir == "" {
		return nil, nil, fmt.Errorf("--cache-dir is required")
	}
	m, err := evalcache.ReadManifest(cacheDir)
	if err != nil {
		return nil, nil, err
	}
	c, err := evalcache.CodecByName(m.Compression)
	if err != nil {
		return nil, nil, err
	}
	st, err := diskstore.New(cacheDir, c)
	if err != nil {
		return nil, nil, err
	}
	return m, st, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	if cacheDir == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Cache.Backend == "gcs" {
			return runBucketStats(cmd, cfg.Cache.Bucket, cfg.Cache.Prefix, cfg.Cache.Compression)
		}
	}
	m, st, err := openCacheDir()
	if err != nil {
		return err
	}
	ids, err := st.ShardIDs()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache directory: %s\n", st.Root())
	fmt.Fprintf(out, "Layout:          %s, %d shards, %s\n", m.Strategy, m.TotalShards, m.Compression)
	fmt.Fprintf(out, "Created:         %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(ids) == 0 {
		fmt.Fprintln(out, "No shards written yet.")
		return nil
	}

	var totalSize int64
	for _, id := range ids {
		info, err := os.Stat(filepath.Join(st.Root(), "shards", shardFile(st, id)))
		if err != nil {
			continue
		}
		totalSize += info.Size()
	}

	var positions int
	ctx := context.Background()
	for _, id := range ids {
		data, err := st.ReadShard(ctx, id)
		if err != nil {
			return fmt.Errorf("reading shard %d: %w", id, err)
		}
		records, err := search.Decode(data)
		if err != nil {
			return fmt.Errorf("decoding shard %d: %w", id, err)
		}
		positions += len(records)
	}

	fmt.Fprintf(out, "Shards:          %d\n", len(ids))
	fmt.Fprintf(out, "Positions:       %d\n", positions)
	fmt.Fprintf(out, "Total size:      %s\n", formatBytes(totalSize))
	return nil
}

// runBucketStats reports the shards of a GCS cache.
func runBucketStats(cmd *cobra.Command, bucket, prefix, compression string) error {
	c, err := evalcache.CodecByName(compression)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := gcsstore.New(ctx, bucket, c, gcsstore.WithPrefix(prefix))
	if err != nil {
		return err
	}
	defer st.Close()

	ids, err := st.ShardIDs(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache bucket:    gs://%s/%s\n", bucket, prefix)
	fmt.Fprintf(out, "Shards:          %d\n", len(ids))
	return nil
}

func runCacheVerify(cmd *cobra.Command, args []string) error {
	m, st, err := openCacheDir()
	if err != nil {
		return err
	}
	ids, err := st.ShardIDs()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ids) == 0 {
		fmt.Fprintln(out, "No shards found in cache directory.")
		return nil
	}
	fmt.Fprintf(out, "Verifying %d shards...\n", len(ids))

	ctx := context.Background()
	var errCount int
	for i, id := range ids {
		if verbose {
			fmt.Fprintf(out, "  [%d/%d] %s\n", i+1, len(ids), shardFile(st, id))
		}
		if err := verifyShard(ctx, st, id, m.TotalShards); err != nil {
			fmt.Fprintf(out, "  ERROR: %s: %v\n", shardFile(st, id), err)
			errCount++
		}
	}

	if errCount > 0 {
		return fmt.Errorf("%d shards failed verification", errCount)
	}
	fmt.Fprintln(out, "All shards verified successfully.")
	return nil
}

func verifyShard(ctx context.Context, st *diskstore.Store, id, total int) error {
	if id >= total {
		return fmt.Errorf("shard id outside manifest range 0-%d", total-1)
	}
	data, err := st.ReadShard(ctx, id)
	if err != nil {
		return err
	}
	records, err := search.Decode(data)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("empty shard")
	}
	if !search.Sorted(data) {
		return fmt.Errorf("records not sorted by position")
	}
	for i, r := range records {
		if r.FEN == "" {
			return fmt.Errorf("record %d: missing position", i+1)
		}
		if r.Depth <= 0 {
			return fmt.Errorf("record %d: depth %d", i+1, r.Depth)
		}
	}
	return nil
}

func runCacheLookup(cmd *cobra.Command, args []string) error {
	if cacheDir == "" {
		return fmt.Errorf("--cache-dir is required")
	}
	if _, err := evalcache.ReadManifest(cacheDir); err != nil {
		return err
	}
	c, err := evalcache.Open(cacheDir)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	entry, err := c.Lookup(cmd.Context(), args[0])
	if errors.Is(err, evalcache.ErrNotFound) {
		fmt.Fprintln(out, "Not cached.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Score: %s\n", entry.ScoreString())
	fmt.Fprintf(out, "Depth: %d\n", entry.Depth)
	if entry.BestMove != "" {
		fmt.Fprintf(out, "Best:  %s\n", entry.BestMove)
	}
	return nil
}

func runCacheImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Cache.Backend == "none" || cfg.Cache.Backend == "" {
		return fmt.Errorf("no cache configured; set --cache-dir or cache.backend")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	c, err := cfg.OpenCache(ctx, cfg.NewCollector(logger, nil), logger)
	if err != nil {
		return err
	}
	defer c.Close()

	source := builder.DefaultSourceURL
	if len(args) == 1 {
		source = args[0]
	}
	in, err := builder.NewSource().Open(ctx, source)
	if err != nil {
		return err
	}
	defer in.Close()

	b := builder.New(c,
		builder.WithMinDepth(cfg.CacheMinDepth()),
		builder.WithWorkers(importWorkers),
		builder.WithBatchSize(importBatchSize),
		builder.WithProgress(builder.PrintProgress(cmd.ErrOrStderr())),
		builder.WithLogger(logger),
	)
	_, err = b.Build(ctx, in)
	return err
}

func shardFile(st *diskstore.Store, id int) string {
	return store.ShardName(id, st.Codec())
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
