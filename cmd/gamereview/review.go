package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/discochess/gamereview"
	"github.com/discochess/gamereview/internal/classify"
	"github.com/discochess/gamereview/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review [PGN file]",
	Short: "Grade the moves of every game in a PGN file",
	Long: `Review evaluates every position of each game in a PGN file, or standard
input when the file is "-" or omitted, and prints each move's grade.

Examples:
  # Only black's moves, with the multiplayer thresholds
  gamereview review --color black --preset multiplayer game.pgn

  # Machine-readable output
  gamereview review --json game.pgn`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

var (
	reviewJSON   bool
	reviewColor  string
	reviewPreset string
)

func init() {
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "output reviews as JSON")
	reviewCmd.Flags().StringVar(&reviewColor, "color", "all", "moves to show: white, black or all")
	reviewCmd.Flags().StringVar(&reviewPreset, "preset", "", "classifier preset: "+strings.Join(classify.PresetNames(), ", "))
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	var color *model.Color
	if reviewColor != "all" {
		c, err := model.ParseColor(reviewColor)
		if err != nil {
			return err
		}
		color = &c
	}

	in := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening PGN: %w", err)
		}
		defer f.Close()
		in = f
	}

	return withReviewer(cmd, func(ctx context.Context, r *gamereview.Reviewer) error {
		reviews, err := r.ReviewPGN(ctx, in)
		if color != nil {
			for i := range reviews {
				filtered := *reviews[i].Report
				filtered.Moves = filtered.ByColor(*color)
				reviews[i].Report = &filtered
			}
		}

		out := cmd.OutOrStdout()
		if reviewJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(reviews); encErr != nil {
				return encErr
			}
		} else {
			for _, gr := range reviews {
				printReview(out, gr)
			}
		}
		return err
	})
}

func printReview(w io.Writer, gr gamereview.GameReview) {
	fmt.Fprintf(w, "=== %s ===\n", gr.Title)
	report := gr.Report
	for _, m := range report.Moves {
		san := ""
		if m.Ply < len(gr.SAN) {
			san = gr.SAN[m.Ply]
		}
		fmt.Fprintf(w, "%3d. %-6s %-7s %+6.2f -> %+6.2f  %-10s", (m.Ply+1)/2, san, m.Mover, m.EvalBefore, m.EvalAfter, m.Severity)
		if m.BestMove != "" && m.Severity < model.QuietMove {
			fmt.Fprintf(w, "  best %s", m.BestMove)
		}
		fmt.Fprintln(w)
	}

	counts := model.Counts(report.Moves)
	fmt.Fprintf(w, "Evaluated %d of %d positions", report.Evaluated, report.Positions)
	if report.Partial {
		fmt.Fprint(w, " (partial)")
	}
	fmt.Fprintln(w)
	for _, s := range model.Severities {
		if counts[s] > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", s, counts[s])
		}
	}
	for _, c := range []model.Color{model.White, model.Black} {
		if len(report.ByColor(c)) > 0 {
			fmt.Fprintf(w, "  accuracy %-5s %.0f%%  avg loss %.2f\n", c, report.Accuracy(c), report.AverageLoss(c))
		}
	}
	fmt.Fprintln(w)
}
