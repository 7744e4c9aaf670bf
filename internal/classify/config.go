package classify

import (
	"fmt"
	"sort"
)

// Thresholds are the pawn-valued deltas, measured from the mover's
// perspective, that separate severity bands.
type Thresholds struct {
	// Excellent is the gain above which a move is ExcellentMove.
	Excellent float64 `mapstructure:"excellent" json:"excellent"`
	// Good is the gain above which a move is GoodMove.
	Good float64 `mapstructure:"good" json:"good"`
	// Inaccuracy is the loss beyond which a move is Inaccuracy.
	// Zero grades every loss as at least an inaccuracy.
	Inaccuracy float64 `mapstructure:"inaccuracy" json:"inaccuracy"`
	// Mistake is the loss beyond which a move is Mistake.
	Mistake float64 `mapstructure:"mistake" json:"mistake"`
	// Blunder is the loss beyond which a move is Blunder.
	Blunder float64 `mapstructure:"blunder" json:"blunder"`
}

// Check selects the upgrade passes run after the base grading.
type Check uint8

const (
	// CheckLosing grades a move that leaves the mover clearly worse as a Mistake.
	CheckLosing Check = 1 << iota
	// CheckMaterial grades a move that leaves the mover down material as a Blunder.
	CheckMaterial
	// CheckTrend grades a move closing a sustained slide as a Mistake.
	CheckTrend
	// CheckMateProximity grades the loser's final moves before mate as Blunders.
	CheckMateProximity

	NoChecks      Check = 0
	DefaultChecks       = CheckLosing | CheckMaterial | CheckTrend
	AllChecks           = DefaultChecks | CheckMateProximity
)

// Has reports whether every check in o is enabled.
func (c Check) Has(o Check) bool {
	return c&o == o
}

// Config parameterizes the classifier.
type Config struct {
	Thresholds `mapstructure:",squash"`

	Checks Check `mapstructure:"checks"`

	// AdvantageMargin is the evaluation a mover must hold before, and fall
	// below the negation of after, for an advantage reversal.
	AdvantageMargin float64 `mapstructure:"advantage_margin"`

	// LosingEval is how far below zero the mover's evaluation must end for CheckLosing.
	LosingEval float64 `mapstructure:"losing_eval"`

	// MaterialDeficit is the point deficit that CheckMaterial must exceed.
	MaterialDeficit int `mapstructure:"material_deficit"`

	// TrendWindow is how many evaluated plies back CheckTrend compares against.
	TrendWindow int `mapstructure:"trend_window"`

	// TrendDrop is the net loss over the window that CheckTrend must exceed.
	TrendDrop float64 `mapstructure:"trend_drop"`

	// MatePlies is how close to the mating ply a loser's move must be for CheckMateProximity.
	MatePlies int `mapstructure:"mate_plies"`
}

func heuristics(t Thresholds, checks Check) Config {
	return Config{
		Thresholds:      t,
		Checks:          checks,
		AdvantageMargin: 0.5,
		LosingEval:      1.0,
		MaterialDeficit: 3,
		TrendWindow:     3,
		TrendDrop:       1.0,
		MatePlies:       3,
	}
}

// Default is the canonical table: the multiplayer thresholds without the
// checkmate-proximity pass, which needs a known game outcome.
func Default() Config {
	return heuristics(Thresholds{Excellent: 0.5, Good: 0.2, Mistake: 0.3, Blunder: 0.8}, DefaultChecks)
}

// SinglePlayer is the tighter table used when reviewing a game against the engine.
func SinglePlayer() Config {
	return heuristics(Thresholds{Excellent: 0.5, Good: 0.1, Mistake: 0.1, Blunder: 0.3}, DefaultChecks)
}

// Multiplayer is the table used for games between two people, with the
// checkmate-proximity pass enabled.
func Multiplayer() Config {
	return heuristics(Thresholds{Excellent: 0.5, Good: 0.2, Mistake: 0.3, Blunder: 0.8}, AllChecks)
}

var presets = map[string]func() Config{
	"default":      Default,
	"singleplayer": SinglePlayer,
	"multiplayer":  Multiplayer,
}

// Preset returns the named configuration.
func Preset(name string) (Config, error) {
	fn, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown classifier preset %q (want one of %v)", name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
