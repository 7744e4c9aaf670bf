package gamereview

import (
	"github.com/discochess/gamereview/internal/classify"
	"github.com/discochess/gamereview/internal/model"
)

// Types shared with the internal packages.
type (
	Position       = model.Position
	Entry          = model.Entry
	Evaluations    = model.Evaluations
	Report         = model.Report
	ClassifiedMove = model.ClassifiedMove
	Severity       = model.Severity
	Color          = model.Color
	Outcome        = classify.Outcome
)

const (
	White = model.White
	Black = model.Black
)

const (
	Blunder       = model.Blunder
	Mistake       = model.Mistake
	Inaccuracy    = model.Inaccuracy
	QuietMove     = model.QuietMove
	GoodMove      = model.GoodMove
	ExcellentMove = model.ExcellentMove
)
