package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/discochess/gamereview"
)

var evalCmd = &cobra.Command{
	Use:   "eval [FEN]",
	Short: "Evaluate a single position",
	Long: `Evaluate a position given in FEN notation. The score is in pawns from
White's perspective; forced mates print as "#N".

Examples:
  # After 1.e4
  gamereview eval "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var (
	evalJSON   bool
	showTiming bool
)

func init() {
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output result as JSON")
	evalCmd.Flags().BoolVar(&showTiming, "timing", false, "show evaluation timing")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	fen := args[0]
	return withReviewer(cmd, func(ctx context.Context, r *gamereview.Reviewer) error {
		start := time.Now()
		entry, err := r.Evaluate(ctx, fen)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)

		out := cmd.OutOrStdout()
		if evalJSON {
			return json.NewEncoder(out).Encode(struct {
				FEN string `json:"fen"`
				gamereview.Entry
				ElapsedMS int64 `json:"elapsed_ms,omitempty"`
			}{fen, entry, timing(elapsed)})
		}

		fmt.Fprintf(out, "FEN:   %s\n", fen)
		fmt.Fprintf(out, "Score: %s\n", entry.ScoreString())
		fmt.Fprintf(out, "Depth: %d\n", entry.Depth)
		if entry.BestMove != "" {
			fmt.Fprintf(out, "Best:  %s\n", entry.BestMove)
		}
		if showTiming {
			fmt.Fprintf(out, "Time:  %s\n", elapsed)
		}
		return nil
	})
}

func timing(d time.Duration) int64 {
	if !showTiming {
		return 0
	}
	return d.Milliseconds()
}
