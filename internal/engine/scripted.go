package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// AnalyzeFunc returns the output lines for a search of fen to depth,
// including the final bestmove line.
type AnalyzeFunc func(fen string, depth int) []string

// Scripted returns a Pipe that answers the UCI handshake and replies to each
// "go depth" with fn's lines for the most recent "position fen".
func Scripted(fn AnalyzeFunc) *Pipe {
	var mu sync.Mutex
	var fen string

	return NewPipe(func(cmd string) []string {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case cmd == "uci":
			return []string{"id name scripted", "id author gamereview", "uciok"}
		case cmd == "isready":
			return []string{"readyok"}
		case strings.HasPrefix(cmd, "position fen "):
			fen = strings.TrimPrefix(cmd, "position fen ")
		case strings.HasPrefix(cmd, "go depth "):
			depth, err := strconv.Atoi(strings.TrimPrefix(cmd, "go depth "))
			if err != nil {
				return nil
			}
			return fn(fen, depth)
		}
		return nil
	})
}

// InfoLine formats an info line at depth carrying score and a pv.
func InfoLine(depth int, score Score, pv ...string) string {
	kind := "cp"
	if score.Mate {
		kind = "mate"
	}
	line := fmt.Sprintf("info depth %d seldepth %d multipv 1 score %s %d nodes 1000", depth, depth+4, kind, score.Value)
	if len(pv) > 0 {
		line += " pv " + strings.Join(pv, " ")
	}
	return line
}

// BestMoveLine formats a bestmove line. An empty move reports no legal move.
func BestMoveLine(move string) string {
	if move == "" {
		move = NoMove
	}
	return "bestmove " + move
}
