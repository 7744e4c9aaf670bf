// Package model holds the data types shared by the evaluation session,
// the move classifier and the public gamereview API.
package model

import (
	"fmt"
	"math"
	"strconv"
)

// MateScore is the bounded magnitude, in pawns, that a forced mate maps to.
const MateScore = 100.0

// Color is the side to move or the side that moved.
type Color int

const (
	White Color = iota
	Black
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// ParseColor parses "white"/"w" or "black"/"b".
func ParseColor(s string) (Color, error) {
	switch s {
	case "white", "w", "White":
		return White, nil
	case "black", "b", "Black":
		return Black, nil
	}
	return White, fmt.Errorf("unknown color %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Position is a serialized board state and the ply it represents.
type Position struct {
	Index int    `json:"index"`
	FEN   string `json:"fen"`
}

// Entry is the engine's evaluation of a single position.
// A zero Depth means no evaluation reached the minimum depth.
type Entry struct {
	// PositionIndex is the index of the evaluated position.
	PositionIndex int `json:"position_index"`

	// Score is in pawns from White's perspective, clamped to [-MateScore, MateScore].
	Score float64 `json:"score"`

	// Mate is the signed mate distance from White's perspective, if any.
	Mate *int `json:"mate,omitempty"`

	// Depth is the search depth the score was reported at.
	Depth int `json:"depth"`

	// BestMove is the engine's chosen move in UCI notation, empty when the
	// position has no legal move.
	BestMove string `json:"best_move,omitempty"`
}

// Present reports whether the entry carries a usable evaluation.
func (e Entry) Present() bool {
	return e.Depth > 0
}

// ScoreString renders the entry like "+1.25" or "#-3".
func (e Entry) ScoreString() string {
	if !e.Present() {
		return "?"
	}
	if e.Mate != nil {
		return "#" + strconv.Itoa(*e.Mate)
	}
	return strconv.FormatFloat(e.Score, 'f', 2, 64)
}

// ClampScore bounds a pawn score to the mate sentinel range.
func ClampScore(s float64) float64 {
	return math.Max(-MateScore, math.Min(MateScore, s))
}

// Evaluations is the output of an evaluation session, one slot per analysed
// position. Slots whose entry is not Present are absent.
type Evaluations struct {
	Entries []Entry `json:"entries"`
}

// NewEvaluations returns n absent slots indexed 0..n-1.
func NewEvaluations(n int) *Evaluations {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i].PositionIndex = i
	}
	return &Evaluations{Entries: entries}
}

// Len returns the number of slots.
func (e *Evaluations) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Entries)
}

// At returns slot i and whether it holds a usable evaluation.
func (e *Evaluations) At(i int) (Entry, bool) {
	if e == nil || i < 0 || i >= len(e.Entries) {
		return Entry{}, false
	}
	entry := e.Entries[i]
	return entry, entry.Present()
}

// Count returns the number of present slots.
func (e *Evaluations) Count() int {
	n := 0
	for i := 0; i < e.Len(); i++ {
		if e.Entries[i].Present() {
			n++
		}
	}
	return n
}

// BestMoves projects the per-position best move list.
func (e *Evaluations) BestMoves() []string {
	moves := make([]string, e.Len())
	for i := range moves {
		moves[i] = e.Entries[i].BestMove
	}
	return moves
}

// Clone returns a deep copy.
func (e *Evaluations) Clone() *Evaluations {
	if e == nil {
		return nil
	}
	out := &Evaluations{Entries: make([]Entry, len(e.Entries))}
	copy(out.Entries, e.Entries)
	for i := range out.Entries {
		if m := out.Entries[i].Mate; m != nil {
			v := *m
			out.Entries[i].Mate = &v
		}
	}
	return out
}
