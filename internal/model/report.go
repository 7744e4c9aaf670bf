package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Severity grades a move. Values are ordered from worst to best.
type Severity int

const (
	Blunder Severity = iota
	Mistake
	Inaccuracy
	QuietMove
	GoodMove
	ExcellentMove
)

var severityNames = [...]string{
	Blunder:       "blunder",
	Mistake:       "mistake",
	Inaccuracy:    "inaccuracy",
	QuietMove:     "quiet",
	GoodMove:      "good",
	ExcellentMove: "excellent",
}

// Severities lists every severity from worst to best.
var Severities = []Severity{Blunder, Mistake, Inaccuracy, QuietMove, GoodMove, ExcellentMove}

func (s Severity) String() string {
	if s < Blunder || s > ExcellentMove {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return QuietMove, fmt.Errorf("unknown severity %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Worse returns the worse of a and b.
func Worse(a, b Severity) Severity {
	if b < a {
		return b
	}
	return a
}

// ClassifiedMove is one graded transition between two evaluated positions.
type ClassifiedMove struct {
	Ply              int      `json:"ply"`
	Mover            Color    `json:"mover"`
	EvalBefore       float64  `json:"eval_before"`
	EvalAfter        float64  `json:"eval_after"`
	RawDelta         float64  `json:"raw_delta"`
	PerspectiveDelta float64  `json:"perspective_delta"`
	Severity         Severity `json:"severity"`
	Position         Position `json:"position"`
	BestMove         string   `json:"best_move,omitempty"`
}

// Report is the ordered result of classifying a game.
type Report struct {
	Moves []ClassifiedMove `json:"moves"`

	// Positions is the number of positions supplied.
	Positions int `json:"positions"`

	// Evaluated is the number of positions with a usable evaluation.
	Evaluated int `json:"evaluated"`

	// Partial is set when evaluation stopped before every position was analysed.
	Partial bool `json:"partial,omitempty"`
}

// ByColor returns the moves made by c, in ply order.
func (r *Report) ByColor(c Color) []ClassifiedMove {
	var out []ClassifiedMove
	for _, m := range r.Moves {
		if m.Mover == c {
			out = append(out, m)
		}
	}
	return out
}

// Counts returns a histogram of severities across moves.
func Counts(moves []ClassifiedMove) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, m := range moves {
		counts[m.Severity]++
	}
	return counts
}

// Accuracy returns the share, in percent, of c's moves graded QuietMove or better.
func (r *Report) Accuracy(c Color) float64 {
	moves := r.ByColor(c)
	if len(moves) == 0 {
		return 0
	}
	sound := 0
	for _, m := range moves {
		if m.Severity >= QuietMove {
			sound++
		}
	}
	return float64(sound) / float64(len(moves)) * 100
}

// AverageLoss returns the mean evaluation, in pawns, that c gave up per move.
// Moves that improved c's position count as no loss.
func (r *Report) AverageLoss(c Color) float64 {
	moves := r.ByColor(c)
	if len(moves) == 0 {
		return 0
	}
	losses := make([]float64, len(moves))
	for i, m := range moves {
		losses[i] = max(0, -m.PerspectiveDelta)
	}
	return stat.Mean(losses, nil)
}
