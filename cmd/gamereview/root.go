package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/gamereview"
	"github.com/discochess/gamereview/fx/reviewfx"
	"github.com/discochess/gamereview/internal/config"
)

var (
	// Global flags.
	configPath string
	enginePath string
	depth      int
	minDepth   int
	cacheDir   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gamereview",
	Short: "Grade every move of a chess game with a UCI engine",
	Long: `Gamereview evaluates each position of a game with a UCI engine such as
Stockfish and grades every move from excellent to blunder by how much it
changed the evaluation for the side that played it.

Settings come from --config, then GAMEREVIEW_* environment variables,
then flags.

Examples:
  # Review every game in a PGN file
  gamereview review games.pgn

  # Keep evaluations so a second review skips the engine
  gamereview review --cache-dir ./cache games.pgn

  # Evaluate one position
  gamereview eval "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

  # Serve the HTTP API
  gamereview serve --addr :8080`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file")
	flags.StringVarP(&enginePath, "engine", "e", "", "path to the UCI engine binary")
	flags.IntVar(&depth, "depth", 0, "search depth per position")
	flags.IntVar(&minDepth, "min-depth", 0, "shallowest depth whose score is kept")
	flags.StringVarP(&cacheDir, "cache-dir", "d", "", "directory of the evaluation cache")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// loadConfig reads the configuration and applies flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Engine.Path = enginePath
	}
	if flags.Changed("depth") {
		cfg.Search.SearchDepth = depth
	}
	if flags.Changed("min-depth") {
		cfg.Search.MinDepth = minDepth
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Backend = "disk"
		cfg.Cache.Dir = cacheDir
	}
	if f := flags.Lookup("preset"); f != nil && f.Changed {
		cfg.Classifier = f.Value.String()
	}
	if verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if !verbose && cfg.Log.Level == "info" {
		// Keep command output clean unless asked.
		return zap.NewNop(), nil
	}
	return cfg.Log.NewLogger()
}

// withReviewer starts the engine and cache and runs fn with the reviewer.
func withReviewer(cmd *cobra.Command, fn func(ctx context.Context, r *gamereview.Reviewer) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var r *gamereview.Reviewer
	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg, logger),
		reviewfx.EngineModule,
		reviewfx.Module,
		fx.Populate(&r),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("starting engine %s: %w", cfg.Engine.Path, err)
	}
	defer app.Stop(context.Background())

	return fn(ctx, r)
}
