// Package search reads and writes evaluation cache shards.
//
// A shard is JSONL sorted by FEN, one Record per line. Lookups binary search
// the raw lines and only decode the match.
package search

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/discochess/gamereview/internal/model"
)

// ErrNotFound indicates the position is not in the shard.
var ErrNotFound = errors.New("search: position not found")

// Record is one cached evaluation. FEN is the normalized key and must stay
// the first field so extractFEN can find it without decoding.
type Record struct {
	FEN      string  `json:"fen"`
	Depth    int     `json:"depth"`
	Score    float64 `json:"score"`
	Mate     *int    `json:"mate,omitempty"`
	BestMove string  `json:"best_move,omitempty"`
}

// Entry converts the record into an evaluation of position index.
func (r Record) Entry(index int) model.Entry {
	e := model.Entry{
		PositionIndex: index,
		Score:         r.Score,
		Depth:         r.Depth,
		BestMove:      r.BestMove,
	}
	if r.Mate != nil {
		m := *r.Mate
		e.Mate = &m
	}
	return e
}

// FromEntry builds the record caching e under the normalized key.
func FromEntry(key string, e model.Entry) Record {
	r := Record{FEN: key, Depth: e.Depth, Score: e.Score, BestMove: e.BestMove}
	if e.Mate != nil {
		m := *e.Mate
		r.Mate = &m
	}
	return r
}

// Search finds targetFEN in sorted shard data.
func Search(data []byte, targetFEN string) (*Record, error) {
	lines := splitLines(data)
	idx := sort.Search(len(lines), func(i int) bool {
		return extractFEN(lines[i]) >= targetFEN
	})
	if idx >= len(lines) || extractFEN(lines[idx]) != targetFEN {
		return nil, ErrNotFound
	}

	var record Record
	if err := json.Unmarshal(lines[idx], &record); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return &record, nil
}

// Decode parses every record in a shard.
func Decode(data []byte) ([]Record, error) {
	lines := splitLines(data)
	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing record %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// Encode writes records as sorted JSONL. Records must have unique FENs.
func Encode(records []Record) ([]byte, error) {
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FEN < sorted[j].FEN })

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range sorted {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encoding %q: %w", r.FEN, err)
		}
	}
	return buf.Bytes(), nil
}

// Merge folds incoming into existing and reports whether anything changed.
// A record replaces the stored one for its FEN only when it is at least as
// deep.
func Merge(existing, incoming []Record) ([]Record, bool) {
	byFEN := make(map[string]int, len(existing))
	out := append([]Record(nil), existing...)
	for i, r := range out {
		byFEN[r.FEN] = i
	}

	changed := false
	for _, r := range incoming {
		i, ok := byFEN[r.FEN]
		switch {
		case !ok:
			byFEN[r.FEN] = len(out)
			out = append(out, r)
			changed = true
		case r.Depth >= out[i].Depth:
			out[i] = r
			changed = true
		}
	}
	return out, changed
}

// Sorted reports whether shard data is in FEN order with no duplicates.
func Sorted(data []byte) bool {
	lines := splitLines(data)
	for i := 1; i < len(lines); i++ {
		if extractFEN(lines[i-1]) >= extractFEN(lines[i]) {
			return false
		}
	}
	return true
}

// splitLines splits data into non-empty lines.
func splitLines(data []byte) [][]byte {
	lines := make([][]byte, 0, bytes.Count(data, []byte{'\n'})+1)
	for len(data) > 0 {
		line := data
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			line, data = data[:idx], data[idx+1:]
		} else {
			data = nil
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractFEN returns the fen field of a JSON line without decoding it.
func extractFEN(line []byte) string {
	const prefix = `"fen":"`
	idx := bytes.Index(line, []byte(prefix))
	if idx < 0 {
		return ""
	}
	start := idx + len(prefix)
	end := bytes.IndexByte(line[start:], '"')
	if end < 0 {
		return ""
	}
	return string(line[start : start+end])
}
