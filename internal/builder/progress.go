// Package builder seeds an evaluation cache from a dump of engine
// evaluations, such as the Lichess evaluation database.
package builder

import (
	"fmt"
	"io"
	"time"
)

// Build phases reported through ProgressFunc.
const (
	PhaseRead  = "read"
	PhaseShard = "shard"
	PhaseDone  = "done"
)

// Progress tracks build progress.
type Progress struct {
	Phase          string
	RecordsRead    int64
	RecordsSkipped int64
	RecordsWritten int64
	ShardsWritten  int
	StartTime      time.Time
}

// ProgressFunc is called periodically with progress updates.
type ProgressFunc func(Progress)

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// PrintProgress returns a ProgressFunc that writes a status line to w.
func PrintProgress(w io.Writer) ProgressFunc {
	return func(p Progress) {
		switch p.Phase {
		case PhaseRead:
			fmt.Fprintf(w, "\r[Read] %d records, %d skipped", p.RecordsRead, p.RecordsSkipped)
		case PhaseShard:
			fmt.Fprintf(w, "\r[Shard] %d shards written, %d records", p.ShardsWritten, p.RecordsWritten)
		case PhaseDone:
			fmt.Fprintf(w, "\n[Done] %d records in %d shard writes (%s)\n",
				p.RecordsWritten, p.ShardsWritten, FormatDuration(time.Since(p.StartTime)))
		}
	}
}
