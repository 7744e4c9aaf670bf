package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseInfo(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Info
		wantOK bool
	}{
		{
			name:   "centipawns",
			line:   "info depth 16 seldepth 22 multipv 1 score cp 34 nodes 120000 nps 900000 pv e2e4 e7e5 g1f3",
			want:   Info{Depth: 16, MultiPV: 1, Score: Score{Value: 34}, PV: []string{"e2e4", "e7e5", "g1f3"}},
			wantOK: true,
		},
		{
			name:   "mate",
			line:   "info depth 20 score mate -2 pv h7h8q",
			want:   Info{Depth: 20, MultiPV: 1, Score: Score{Mate: true, Value: -2}, PV: []string{"h7h8q"}},
			wantOK: true,
		},
		{
			name:   "second variation",
			line:   "info depth 18 multipv 2 score cp -12 pv d2d4",
			want:   Info{Depth: 18, MultiPV: 2, Score: Score{Value: -12}, PV: []string{"d2d4"}},
			wantOK: true,
		},
		{
			name:   "bound",
			line:   "info depth 17 score cp 50 upperbound nodes 10",
			want:   Info{Depth: 17, MultiPV: 1, Score: Score{Value: 50}, Bound: true},
			wantOK: true,
		},
		{name: "no score", line: "info depth 12 currmove e2e4 currmovenumber 1"},
		{name: "no depth", line: "info score cp 10"},
		{name: "string", line: "info string NNUE evaluation using nn-1111.nnue depth 3 score cp 1"},
		{name: "bad number", line: "info depth x score cp 10"},
		{name: "not info", line: "bestmove e2e4"},
		{name: "empty", line: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInfo(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseInfo() ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseInfo() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseBestMove(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"bestmove e2e4 ponder e7e5", "e2e4", true},
		{"bestmove e7e8q", "e7e8q", true},
		{"bestmove (none)", "", true},
		{"bestmove 0000", "", true},
		{"bestmove", "", true},
		{"info depth 1 score cp 0", "", false},
		{"readyok", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseBestMove(tt.line)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseBestMove(%q) = %q, %v, want %q, %v", tt.line, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestInfoLine_RoundTrip(t *testing.T) {
	line := InfoLine(19, Score{Mate: true, Value: 3}, "d1h5")
	got, ok := ParseInfo(line)
	if !ok {
		t.Fatalf("ParseInfo(%q) not ok", line)
	}
	if got.Depth != 19 || !got.Score.Mate || got.Score.Value != 3 {
		t.Errorf("ParseInfo(InfoLine()) = %+v", got)
	}
}
