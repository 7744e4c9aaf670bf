package engine

import (
	"strconv"
	"strings"
)

// Sentinel best moves an engine sends when the position has no legal move.
const (
	NoMove     = "(none)"
	NullMove   = "0000"
	bestPrefix = "bestmove"
	infoPrefix = "info"
)

// Score is an engine score as reported, relative to the side to move.
type Score struct {
	// Mate is true when Value is a mate distance in moves rather than centipawns.
	Mate  bool
	Value int
}

// Info is the evaluation carried by one "info" line.
type Info struct {
	Depth   int
	MultiPV int
	Score   Score
	// Bound is set for upperbound and lowerbound scores, which are not exact.
	Bound bool
	PV    []string
}

// ParseInfo parses an "info" line carrying both a depth and a score.
// Lines without either, such as "info string" or currmove updates, report false.
func ParseInfo(line string) (Info, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != infoPrefix {
		return Info{}, false
	}

	info := Info{MultiPV: 1}
	var haveDepth, haveScore bool
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "string":
			// The rest of the line is free text.
			return Info{}, false
		case "depth":
			if i+1 < len(fields) {
				if v, err := strconv.Atoi(fields[i+1]); err == nil {
					info.Depth = v
					haveDepth = true
				}
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				if v, err := strconv.Atoi(fields[i+1]); err == nil {
					info.MultiPV = v
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				v, err := strconv.Atoi(fields[i+2])
				switch {
				case err != nil:
				case fields[i+1] == "cp":
					info.Score = Score{Value: v}
					haveScore = true
				case fields[i+1] == "mate":
					info.Score = Score{Mate: true, Value: v}
					haveScore = true
				}
				i += 2
			}
		case "upperbound", "lowerbound":
			info.Bound = true
		case "pv":
			info.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		}
	}

	if !haveDepth || !haveScore {
		return Info{}, false
	}
	return info, true
}

// ParseBestMove parses a "bestmove" line. The move is empty when the engine
// reports that no legal move exists.
func ParseBestMove(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != bestPrefix {
		return "", false
	}
	if len(fields) < 2 || fields[1] == NoMove || fields[1] == NullMove {
		return "", true
	}
	return fields[1], true
}

func positionCommand(fen string) string {
	return "position fen " + fen
}

func goDepthCommand(depth int) string {
	return "go depth " + strconv.Itoa(depth)
}

func multiPVCommand(n int) string {
	return "setoption name MultiPV value " + strconv.Itoa(n)
}
