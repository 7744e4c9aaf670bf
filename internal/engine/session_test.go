package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/discochess/gamereview/internal/model"
)

const placement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

func testPositions(n int) []model.Position {
	out := make([]model.Position, n)
	for i := range out {
		side := "w"
		if i%2 == 1 {
			side = "b"
		}
		out[i] = model.Position{Index: i, FEN: placement + " " + side + " KQkq - 0 1"}
	}
	return out
}

// started returns a session that has finished syncing and is searching position 0.
func started(t *testing.T, n int, cfg Config) *Session {
	t.Helper()
	s := NewSession(testPositions(n), cfg)
	s.Start()
	s.Step("readyok")
	if s.State() != AwaitingEval {
		t.Fatalf("State() = %v, want %v", s.State(), AwaitingEval)
	}
	return s
}

func TestSession_ShortInputIsNoop(t *testing.T) {
	for n := 0; n < MinPositions; n++ {
		s := NewSession(testPositions(n), Config{})
		if cmds := s.Start(); len(cmds) != 0 {
			t.Errorf("n=%d: Start() = %v, want no commands", n, cmds)
		}
		if !s.Done() {
			t.Errorf("n=%d: Done() = false, want true", n)
		}
		if got := s.Evaluations().Len(); got != 0 {
			t.Errorf("n=%d: Evaluations().Len() = %d, want 0", n, got)
		}
	}
}

func TestSession_CommandSequence(t *testing.T) {
	ps := testPositions(3)
	s := NewSession(ps, Config{SearchDepth: 16, MultiPV: 2})

	want := []string{"stop", "setoption name MultiPV value 2", "ucinewgame", "isready"}
	if diff := cmp.Diff(want, s.Start()); diff != "" {
		t.Errorf("Start() mismatch (-want +got):\n%s", diff)
	}

	// Output from an earlier search is discarded until readyok.
	if cmds := s.Step("bestmove a2a3"); cmds != nil {
		t.Errorf("Step(stale bestmove) = %v, want nil", cmds)
	}
	if s.State() != Syncing {
		t.Fatalf("State() = %v, want %v", s.State(), Syncing)
	}

	want = []string{"position fen " + ps[0].FEN, "go depth 16"}
	if diff := cmp.Diff(want, s.Step("readyok")); diff != "" {
		t.Errorf("Step(readyok) mismatch (-want +got):\n%s", diff)
	}

	want = []string{"position fen " + ps[1].FEN, "go depth 16"}
	if diff := cmp.Diff(want, s.Step("bestmove e2e4")); diff != "" {
		t.Errorf("Step(bestmove) mismatch (-want +got):\n%s", diff)
	}

	// The position before the last is the final one searched.
	if cmds := s.Step("bestmove e7e5"); cmds != nil {
		t.Errorf("final Step() = %v, want nil", cmds)
	}
	if !s.Done() {
		t.Error("Done() = false after last bestmove")
	}
	if got := s.Evaluations().Len(); got != 2 {
		t.Errorf("Evaluations().Len() = %d, want 2", got)
	}
	if diff := cmp.Diff([]string{"e2e4", "e7e5"}, s.Evaluations().BestMoves()); diff != "" {
		t.Errorf("BestMoves() mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_MinimumDepth(t *testing.T) {
	s := started(t, 3, Config{MinDepth: 15})

	s.Step("info depth 10 score cp 250 pv e2e4")
	if _, ok := s.Evaluations().At(0); ok {
		t.Fatal("depth 10 line created an entry")
	}

	s.Step("info depth 16 score cp 40 pv e2e4")
	entry, ok := s.Evaluations().At(0)
	if !ok {
		t.Fatal("depth 16 line did not create an entry")
	}
	if entry.Score != 0.4 || entry.Depth != 16 {
		t.Errorf("entry = %+v, want score 0.4 at depth 16", entry)
	}

	// A shallower line never overwrites a deeper one.
	s.Step("info depth 15 score cp -300")
	if entry, _ := s.Evaluations().At(0); entry.Score != 0.4 {
		t.Errorf("Score after shallower line = %v, want 0.4", entry.Score)
	}

	// Equal or deeper lines replace it.
	s.Step("info depth 16 score cp 55")
	s.Step("info depth 18 score cp 61")
	if entry, _ := s.Evaluations().At(0); entry.Score != 0.61 || entry.Depth != 18 {
		t.Errorf("entry = %+v, want score 0.61 at depth 18", entry)
	}
}

func TestSession_MateNormalization(t *testing.T) {
	tests := []struct {
		name     string
		position int
		line     string
		want     float64
		wantMate int
	}{
		{"white mates", 0, "info depth 20 score mate 3", 100, 3},
		{"white is mated", 0, "info depth 20 score mate -2", -100, -2},
		{"black mates", 1, "info depth 20 score mate 2", -100, -2},
		{"black is mated", 1, "info depth 20 score mate -4", 100, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := started(t, 4, Config{})
			if tt.position == 1 {
				s.Step("bestmove e2e4")
			}
			s.Step(tt.line)

			entry, ok := s.Evaluations().At(tt.position)
			if !ok {
				t.Fatal("no entry recorded")
			}
			if entry.Score != tt.want {
				t.Errorf("Score = %v, want %v", entry.Score, tt.want)
			}
			if entry.Mate == nil || *entry.Mate != tt.wantMate {
				t.Errorf("Mate = %v, want %d", entry.Mate, tt.wantMate)
			}
		})
	}
}

func TestSession_ScoresBoundedAndWhitePerspective(t *testing.T) {
	s := started(t, 4, Config{})

	s.Step("info depth 20 score cp 25000")
	s.Step("bestmove e2e4")
	s.Step("info depth 20 score cp 80")
	s.Step("bestmove e7e5")

	first, _ := s.Evaluations().At(0)
	if first.Score != model.MateScore {
		t.Errorf("clamped Score = %v, want %v", first.Score, model.MateScore)
	}
	second, _ := s.Evaluations().At(1)
	if second.Score != -0.8 {
		t.Errorf("black-to-move Score = %v, want -0.8", second.Score)
	}
}

func TestSession_IgnoresSecondaryAndBoundLines(t *testing.T) {
	s := started(t, 3, Config{})

	s.Step("info depth 20 multipv 1 score cp 30")
	s.Step("info depth 20 multipv 2 score cp -90")
	s.Step("info depth 21 score cp 500 lowerbound")
	s.Step("id name something unexpected")

	entry, _ := s.Evaluations().At(0)
	if entry.Score != 0.3 || entry.Depth != 20 {
		t.Errorf("entry = %+v, want score 0.3 at depth 20", entry)
	}
	if s.Ignored() != 3 {
		t.Errorf("Ignored() = %d, want 3", s.Ignored())
	}
}

func TestSession_NoLegalMove(t *testing.T) {
	s := started(t, 3, Config{})
	s.Step("info depth 20 score mate 0")
	s.Step("bestmove (none)")

	entry, ok := s.Evaluations().At(0)
	if !ok {
		t.Fatal("no entry recorded")
	}
	if entry.BestMove != "" {
		t.Errorf("BestMove = %q, want empty", entry.BestMove)
	}
	if s.Cursor() != 1 {
		t.Errorf("Cursor() = %d, want 1", s.Cursor())
	}
}

func TestSession_StepAfterDone(t *testing.T) {
	s := started(t, 3, Config{})
	s.Step("bestmove e2e4")
	s.Step("bestmove e7e5")
	if !s.Done() {
		t.Fatal("Done() = false")
	}
	if cmds := s.Step("readyok"); cmds != nil {
		t.Errorf("Step() after done = %v, want nil", cmds)
	}
}
