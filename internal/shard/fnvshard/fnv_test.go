package fnvshard

import "testing"

func TestStrategy_Name(t *testing.T) {
	if got := New().Name(); got != "fnv32m" {
		t.Errorf("Name() = %q, want %q", got, "fnv32m")
	}
}

func TestStrategy_ShardID_Range(t *testing.T) {
	s := New()
	fens := []string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"8/8/8/4k3/8/8/4K3/4R3 w - - 0 1",
		"r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4",
		"not a fen",
	}
	for _, total := range []int{1, 7, 256} {
		for _, f := range fens {
			if id := s.ShardID(f, total); id < 0 || id >= total {
				t.Errorf("ShardID(%q, %d) = %d, out of range", f, total, id)
			}
		}
	}
}

func TestStrategy_ShardID_IgnoresMoveCounters(t *testing.T) {
	s := New()
	a := s.ShardID("r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4", 4096)
	b := s.ShardID("r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 0 30", 4096)
	if a != b {
		t.Errorf("ShardID() = %d and %d for the same position", a, b)
	}
}

func TestStrategy_ShardID_Distribution(t *testing.T) {
	s := New()
	const total = 16
	counts := make([]int, total)

	// Walk a white king around an otherwise fixed board.
	for sq := 0; sq < 64; sq++ {
		rank, file := sq/8, sq%8
		rows := make([]string, 8)
		for r := range rows {
			rows[r] = "8"
			if r == rank {
				rows[r] = placeKing(file)
			}
		}
		f := rows[0]
		for _, r := range rows[1:] {
			f += "/" + r
		}
		counts[s.ShardID(f+" w - - 0 1", total)]++
	}

	used := 0
	for _, n := range counts {
		if n > 0 {
			used++
		}
	}
	if used < total/2 {
		t.Errorf("64 positions used %d of %d shards", used, total)
	}
}

func TestStrategy_ShardID_OpeningDistribution(t *testing.T) {
	s := New()
	fens := []string{
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		"rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2",
		"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	}
	for _, total := range []int{251, 256, 4096} {
		ids := make(map[int]bool, len(fens))
		for _, f := range fens {
			ids[s.ShardID(f, total)] = true
		}
		if len(ids) < len(fens)-1 {
			t.Errorf("%d shards: %d unique ids for %d positions", total, len(ids), len(fens))
		}
	}
}

func TestMix(t *testing.T) {
	// Inputs differing only in high bits must land apart in the low bits.
	if mix(0x10000)&0xf == mix(0x20000)&0xf && mix(0x20000)&0xf == mix(0x30000)&0xf {
		t.Error("mix() left the low bits unchanged by high-bit differences")
	}
	if mix(0) != 0 {
		t.Errorf("mix(0) = %#x, want 0", mix(0))
	}
}

func placeKing(file int) string {
	row := ""
	if file > 0 {
		row += string(rune('0' + file))
	}
	row += "K"
	if rest := 7 - file; rest > 0 {
		row += string(rune('0' + rest))
	}
	return row
}
