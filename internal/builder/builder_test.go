package builder

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/discochess/gamereview/internal/evalcache"
	"github.com/discochess/gamereview/internal/search"
	"github.com/discochess/gamereview/internal/store/memstore"
)

const (
	startKey = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"
	e4Key    = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -"
)

func newCache(t *testing.T) *evalcache.Cache {
	t.Helper()
	c, err := evalcache.New(evalcache.WithStore(memstore.New()), evalcache.WithTotalShards(4))
	if err != nil {
		t.Fatalf("evalcache.New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestParseLine(t *testing.T) {
	mate := -3
	tests := []struct {
		name    string
		line    string
		want    search.Record
		wantErr bool
	}{
		{
			name: "cache record",
			line: `{"fen":"` + startKey + ` 0 1","depth":20,"score":0.3,"best_move":"e2e4"}`,
			want: search.Record{FEN: startKey, Depth: 20, Score: 0.3, BestMove: "e2e4"},
		},
		{
			name: "lichess deepest eval",
			line: `{"fen":"` + e4Key + `","evals":[` +
				`{"pvs":[{"cp":40,"line":"c7c5 g1f3"}],"knodes":100,"depth":22},` +
				`{"pvs":[{"cp":31,"line":"e7e5 g1f3"},{"cp":20,"line":"c7c5"}],"knodes":900,"depth":36}]}`,
			want: search.Record{FEN: e4Key, Depth: 36, Score: 0.31, BestMove: "e7e5"},
		},
		{
			name: "lichess mate",
			line: `{"fen":"` + e4Key + `","evals":[{"pvs":[{"mate":-3,"line":"d8h4"}],"depth":30}]}`,
			want: search.Record{FEN: e4Key, Depth: 30, Score: -100, Mate: &mate, BestMove: "d8h4"},
		},
		{
			name:    "no evaluation",
			line:    `{"fen":"` + startKey + `"}`,
			wantErr: true,
		},
		{
			name:    "lichess without pvs",
			line:    `{"fen":"` + startKey + `","evals":[{"pvs":[],"depth":10}]}`,
			wantErr: true,
		},
		{
			name:    "bad fen",
			line:    `{"fen":"nonsense","depth":20}`,
			wantErr: true,
		},
		{
			name:    "not json",
			line:    `fen,depth`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseLine() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuilder_Build(t *testing.T) {
	c := newCache(t)
	input := strings.Join([]string{
		`{"fen":"` + startKey + ` 0 1","depth":20,"score":0.3,"best_move":"e2e4"}`,
		``,
		`{"fen":"` + e4Key + `","evals":[{"pvs":[{"cp":-25,"line":"c7c5"}],"depth":12}]}`,
		`garbage`,
	}, "\n")

	var phases []string
	b := New(c,
		WithMinDepth(15),
		WithBatchSize(1),
		WithProgress(func(p Progress) { phases = append(phases, p.Phase) }),
	)
	p, err := b.Build(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.RecordsRead != 3 || p.RecordsSkipped != 2 || p.RecordsWritten != 1 {
		t.Errorf("Build() progress = %+v, want 3 read, 2 skipped, 1 written", p)
	}
	if len(phases) == 0 || phases[len(phases)-1] != PhaseDone {
		t.Errorf("last phase = %v, want %s", phases, PhaseDone)
	}

	entry, err := c.Lookup(context.Background(), startKey+" 5 9")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.Score != 0.3 || entry.Depth != 20 || entry.BestMove != "e2e4" {
		t.Errorf("Lookup() = %+v", entry)
	}
	if _, err := c.Lookup(context.Background(), e4Key+" 0 1"); err == nil {
		t.Error("shallow evaluation was imported")
	}
}

func TestBuilder_KeepsDeeperExisting(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	b := New(c)

	deep := `{"fen":"` + startKey + `","depth":30,"score":0.2}`
	shallow := `{"fen":"` + startKey + `","depth":18,"score":0.9}`
	for _, line := range []string{deep, shallow} {
		if _, err := b.Build(ctx, strings.NewReader(line)); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
	}

	entry, err := c.Lookup(ctx, startKey+" 0 1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if entry.Depth != 30 || entry.Score != 0.2 {
		t.Errorf("Lookup() = %+v, want the depth 30 evaluation", entry)
	}
}

func TestBuilder_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(newCache(t)).Build(ctx, strings.NewReader(`{"fen":"`+startKey+`","depth":20}`))
	if err != context.Canceled {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestSource_Open(t *testing.T) {
	const body = `{"fen":"x"}` + "\n"

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write([]byte(body))
	w.Close()

	dir := t.TempDir()
	plain := filepath.Join(dir, "evals.jsonl")
	packed := filepath.Join(dir, "evals.jsonl.gz")
	if err := os.WriteFile(plain, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(packed, gz.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/evals.jsonl" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := NewSource(WithHTTPClient(srv.Client()))
	s.stdin = strings.NewReader(body)

	for _, name := range []string{plain, packed, srv.URL + "/evals.jsonl", "-"} {
		t.Run(filepath.Base(name), func(t *testing.T) {
			rc, err := s.Open(context.Background(), name)
			if err != nil {
				t.Fatalf("Open(%q) error = %v", name, err)
			}
			defer rc.Close()
			var got bytes.Buffer
			if _, err := got.ReadFrom(rc); err != nil {
				t.Fatalf("reading: %v", err)
			}
			if got.String() != body {
				t.Errorf("Open(%q) = %q, want %q", name, got.String(), body)
			}
		})
	}

	if _, err := s.Open(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("Open() of a 404 succeeded")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"45s", "45s"},
		{"3m20s", "3m 20s"},
		{"2h5m", "2h 5m"},
	}
	for _, tt := range tests {
		d, _ := time.ParseDuration(tt.in)
		if got := FormatDuration(d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
