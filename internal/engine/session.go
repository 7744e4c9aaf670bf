package engine

import (
	"github.com/discochess/gamereview/internal/fen"
	"github.com/discochess/gamereview/internal/model"
)

// MinPositions is the shortest position list a session will analyse.
const MinPositions = 3

// State is the phase of a Session.
type State int

const (
	// Idle sessions have not been started.
	Idle State = iota
	// Syncing sessions discard output until the engine acknowledges isready,
	// so lines from an earlier search cannot be attributed to this one.
	Syncing
	// AwaitingEval sessions are searching the position at Cursor.
	AwaitingEval
	// Done sessions have analysed every position they will analyse.
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case AwaitingEval:
		return "awaiting-eval"
	case Done:
		return "done"
	}
	return "unknown"
}

// Session evaluates a list of positions one at a time. It is a pure state
// machine: Start and Step return the commands to send and never perform I/O.
type Session struct {
	cfg       Config
	positions []model.Position
	sides     []model.Color
	evals     *model.Evaluations
	state     State
	cursor    int
	ignored   int
}

// NewSession returns an Idle session over positions.
func NewSession(positions []model.Position, cfg Config) *Session {
	sides := make([]model.Color, len(positions))
	for i, p := range positions {
		if c, err := fen.SideToMove(p.FEN); err == nil {
			sides[i] = c
		}
	}
	return &Session{
		cfg:       cfg.WithDefaults(),
		positions: positions,
		sides:     sides,
		evals:     model.NewEvaluations(0),
	}
}

// Start begins the session. Lists shorter than MinPositions finish
// immediately with no commands and zero evaluations.
func (s *Session) Start() []string {
	if s.state != Idle {
		return nil
	}
	if len(s.positions) < MinPositions {
		s.state = Done
		return nil
	}
	s.evals = model.NewEvaluations(len(s.positions) - 1)
	s.state = Syncing
	return []string{
		"stop",
		multiPVCommand(s.cfg.MultiPV),
		"ucinewgame",
		"isready",
	}
}

// Step feeds one engine output line to the session and returns the
// commands to send in response. Unrecognised lines are ignored.
func (s *Session) Step(line string) []string {
	switch s.state {
	case Syncing:
		if line == "readyok" {
			s.state = AwaitingEval
			s.cursor = 0
			return s.search()
		}
		s.ignored++
		return nil

	case AwaitingEval:
		if info, ok := ParseInfo(line); ok {
			s.record(info)
			return nil
		}
		if move, ok := ParseBestMove(line); ok {
			s.evals.Entries[s.cursor].BestMove = move
			s.cursor++
			if s.cursor >= len(s.positions)-1 {
				s.state = Done
				return nil
			}
			return s.search()
		}
		s.ignored++
		return nil
	}
	return nil
}

// record stores info against the current position if it is deep enough
// and at least as deep as what is already stored.
func (s *Session) record(info Info) {
	if info.Bound || info.MultiPV > 1 || info.Depth < s.cfg.MinDepth {
		s.ignored++
		return
	}
	entry := &s.evals.Entries[s.cursor]
	if entry.Depth > info.Depth {
		return
	}

	entry.Depth = info.Depth
	entry.Score, entry.Mate = Normalize(info.Score, s.sides[s.cursor])
}

// Normalize converts a score reported for side to move into pawns from
// White's perspective, with the signed mate distance when there is one.
func Normalize(score Score, side model.Color) (float64, *int) {
	sign := 1
	if side == model.Black {
		sign = -1
	}
	if score.Mate {
		mate := score.Value * sign
		return mateScore(score.Value) * float64(sign), &mate
	}
	return model.ClampScore(float64(score.Value*sign) / 100), nil
}

// mateScore maps a side-to-move mate distance to the bounded sentinel.
// "mate 0" and negative distances mean the side to move is being mated.
func mateScore(n int) float64 {
	if n > 0 {
		return model.MateScore
	}
	return -model.MateScore
}

func (s *Session) search() []string {
	return []string{
		positionCommand(s.positions[s.cursor].FEN),
		goDepthCommand(s.cfg.SearchDepth),
	}
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// Done reports whether the session has finished.
func (s *Session) Done() bool {
	return s.state == Done
}

// Cursor returns the index of the position being searched.
func (s *Session) Cursor() int {
	return s.cursor
}

// Ignored returns how many lines did not change the session.
func (s *Session) Ignored() int {
	return s.ignored
}

// Evaluations returns the evaluations recorded so far. The session keeps
// writing to them until it is Done.
func (s *Session) Evaluations() *model.Evaluations {
	return s.evals
}
