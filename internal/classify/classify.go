// Package classify grades each move of an evaluated game.
//
// The classifier walks consecutive pairs of evaluations, reorients the
// score change toward the side that moved and assigns a base severity from
// the configured thresholds. Upgrade passes may then move that severity
// toward worse categories, never better: a losing final evaluation, a
// material deficit on the board, a sustained slide over recent plies and,
// if enabled, proximity to a checkmate the mover suffered.
package classify

import (
	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/model"
)

// Outcome describes how the game ended, as far as the classifier cares.
type Outcome struct {
	Checkmate bool        `json:"checkmate"`
	Loser     model.Color `json:"loser"`
}

// Classify grades every transition i-1 -> i where both evaluations are present.
// It performs no I/O and returns the same report for the same inputs.
func Classify(positions []model.Position, evals *model.Evaluations, outcome Outcome, cfg Config) model.Report {
	report := model.Report{
		Positions: len(positions),
		Evaluated: evals.Count(),
	}

	n := min(evals.Len(), len(positions))
	lastIndex := len(positions) - 1

	// history holds indices of present evaluations seen so far, for the trend window.
	var history []int

	for i := 0; i < n; i++ {
		before, okBefore := evals.At(i - 1)
		after, okAfter := evals.At(i)
		if okAfter {
			history = append(history, i)
		}
		if i == 0 || !okBefore || !okAfter {
			continue
		}

		mover, err := fen.SideToMove(positions[i-1].FEN)
		if err != nil {
			continue
		}

		raw := after.Score - before.Score
		sign := perspective(mover)
		persp := raw * sign
		perspBefore := before.Score * sign
		perspAfter := after.Score * sign

		severity := cfg.grade(perspBefore, perspAfter, persp)

		if cfg.Checks.Has(CheckLosing) && perspAfter < -cfg.LosingEval {
			severity = model.Worse(severity, model.Mistake)
		}

		if cfg.Checks.Has(CheckMaterial) {
			if m, err := fen.ParseMaterial(positions[i].FEN); err == nil && m.Deficit(mover) > cfg.MaterialDeficit {
				severity = model.Worse(severity, model.Blunder)
			}
		}

		if cfg.Checks.Has(CheckTrend) && cfg.TrendWindow > 0 && len(history) > cfg.TrendWindow {
			from, _ := evals.At(history[len(history)-1-cfg.TrendWindow])
			if net := (after.Score - from.Score) * sign; net < -cfg.TrendDrop {
				severity = model.Worse(severity, model.Mistake)
			}
		}

		if cfg.Checks.Has(CheckMateProximity) && outcome.Checkmate && outcome.Loser == mover && lastIndex-i <= cfg.MatePlies {
			severity = model.Blunder
		}

		report.Moves = append(report.Moves, model.ClassifiedMove{
			Ply:              i,
			Mover:            mover,
			EvalBefore:       before.Score,
			EvalAfter:        after.Score,
			RawDelta:         raw,
			PerspectiveDelta: persp,
			Severity:         severity,
			Position:         positions[i],
			BestMove:         before.BestMove,
		})
	}

	return report
}

// grade applies the base rules in order; the first match wins.
func (c Config) grade(before, after, delta float64) model.Severity {
	switch {
	case before > c.AdvantageMargin && after < -c.AdvantageMargin:
		return model.Blunder
	case delta < -c.Blunder:
		return model.Blunder
	case delta < -c.Mistake:
		return model.Mistake
	case delta < -c.Inaccuracy:
		return model.Inaccuracy
	case delta > c.Excellent:
		return model.ExcellentMove
	case delta > c.Good:
		return model.GoodMove
	default:
		return model.QuietMove
	}
}

func perspective(c model.Color) float64 {
	if c == model.Black {
		return -1
	}
	return 1
}
