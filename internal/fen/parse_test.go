package fen

import (
	"testing"

	"github.com/discochess/gamereview/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "starting position",
			input: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			want:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -",
		},
		{
			name:  "en passant square kept",
			input: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
			want:  "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3",
		},
		{
			name:  "counters dropped",
			input: "r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w - - 10 20",
			want:  "r3k2r/pppppppp/8/8/8/8/PPPPPPPP/R3K2R w - -",
		},
		{name: "empty", input: "", wantErr: true},
		{name: "too few fields", input: "8/8/8/8/8/8/8/8 w", wantErr: true},
		{name: "bad side", input: "8/8/8/8/8/8/8/8 x - - 0 1", wantErr: true},
		{name: "seven ranks", input: "8/8/8/8/8/8/8 w - - 0 1", wantErr: true},
		{name: "short rank", input: "7/8/8/8/8/8/8/8 w - - 0 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMaterial(t *testing.T) {
	start, err := ParseMaterial("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseMaterial() error = %v", err)
	}
	want := Army{Pawns: 8, Knights: 2, Bishops: 2, Rooks: 2, Queens: 1}
	if start.Side(model.White) != want || start.Side(model.Black) != want {
		t.Errorf("ParseMaterial() = %+v, want both sides %+v", start, want)
	}
	if got := start.Side(model.White).Points(); got != 39 {
		t.Errorf("Points() = %d, want 39", got)
	}

	if _, err := ParseMaterial("rnbxkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"); err == nil {
		t.Error("ParseMaterial() with invalid piece: expected error")
	}
	if _, err := ParseMaterial(""); err == nil {
		t.Error("ParseMaterial(\"\"): expected error")
	}
}

func TestMaterial_Deficit(t *testing.T) {
	tests := []struct {
		name  string
		fen   string
		color model.Color
		want  int
	}{
		{"equal", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", model.White, 0},
		{"white missing rook", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBN1 b Qkq - 0 1", model.White, 5},
		{"black view of same", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBN1 b Qkq - 0 1", model.Black, -5},
		{"bare kings", "4k3/8/8/8/8/8/8/4K3 w - - 0 1", model.Black, 0},
		{"queen vs two rooks", "3rr1k1/8/8/8/8/8/8/3QK3 w - - 0 1", model.White, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMaterial(tt.fen)
			if err != nil {
				t.Fatalf("ParseMaterial() error = %v", err)
			}
			if got := m.Deficit(tt.color); got != tt.want {
				t.Errorf("Deficit(%v) = %d, want %d", tt.color, got, tt.want)
			}
		})
	}
}

func TestSideToMove(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    model.Color
		wantErr bool
	}{
		{name: "white", input: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", want: model.White},
		{name: "black", input: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", want: model.Black},
		{name: "invalid", input: "8/8/8/8/8/8/8/8 x - - 0 1", wantErr: true},
		{name: "missing", input: "8/8/8/8/8/8/8/8", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SideToMove(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("SideToMove() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SideToMove() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkParseMaterial(b *testing.B) {
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	for i := 0; i < b.N; i++ {
		_, _ = ParseMaterial(fen)
	}
}
