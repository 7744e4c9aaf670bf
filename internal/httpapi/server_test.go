package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discochess/gamereview"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/reportstore"
	"github.com/discochess/gamereview/internal/reportstore/memory"
)

// fakeReviewer returns a fixed two-move report, or err.
type fakeReviewer struct {
	err  error
	pgns []string
}

func report() *gamereview.Report {
	return &gamereview.Report{
		Positions: 3,
		Evaluated: 2,
		Moves: []model.ClassifiedMove{
			{Ply: 1, Mover: model.White, Severity: model.QuietMove},
			{Ply: 2, Mover: model.Black, Severity: model.Blunder},
		},
	}
}

func (f *fakeReviewer) ReviewPGN(_ context.Context, pgn io.Reader) ([]gamereview.GameReview, error) {
	b, _ := io.ReadAll(pgn)
	f.pgns = append(f.pgns, string(b))
	return []gamereview.GameReview{{Title: "A vs B", Report: report()}}, f.err
}

func (f *fakeReviewer) ReviewFENs(context.Context, []string) (*gamereview.Report, error) {
	return report(), f.err
}

func newTestServer(rv Reviewer) (*Server, *httptest.Server) {
	s := New(rv, memory.New(), WithGatherer(prometheus.NewRegistry()))
	return s, httptest.NewServer(s.Handler())
}

func post(t *testing.T, url, body string) (*http.Response, createResponse) {
	t.Helper()
	resp, err := http.Post(url+"/reviews", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /reviews error = %v", err)
	}
	defer resp.Body.Close()
	var out createResponse
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func get(t *testing.T, url, id string) (int, reportstore.Review) {
	t.Helper()
	resp, err := http.Get(url + "/reviews/" + id)
	if err != nil {
		t.Fatalf("GET /reviews/%s error = %v", id, err)
	}
	defer resp.Body.Close()
	var out reportstore.Review
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestCreateAndGet(t *testing.T) {
	rv := &fakeReviewer{}
	s, ts := newTestServer(rv)
	defer ts.Close()

	resp, created := post(t, ts.URL, `{"pgn":"1. e4 e5 *"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	if created.ID == "" || created.Status != reportstore.StatusAnalyzing {
		t.Fatalf("response = %+v", created)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	s.Wait()
	status, review := get(t, ts.URL, created.ID)
	if status != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", status)
	}
	if review.Status != reportstore.StatusReady {
		t.Errorf("Status = %q, want ready", review.Status)
	}
	if len(review.Games) != 1 || len(review.Games[0].Report.Moves) != 2 {
		t.Errorf("Games = %+v", review.Games)
	}
	if len(rv.pgns) != 1 || rv.pgns[0] != "1. e4 e5 *" {
		t.Errorf("reviewed PGNs = %q", rv.pgns)
	}
}

func TestCreate_ColorFilter(t *testing.T) {
	s, ts := newTestServer(&fakeReviewer{})
	defer ts.Close()

	_, created := post(t, ts.URL, `{"fens":["a","b","c"],"color":"black"}`)
	s.Wait()

	_, review := get(t, ts.URL, created.ID)
	moves := review.Games[0].Report.Moves
	if len(moves) != 1 || moves[0].Mover != model.Black {
		t.Errorf("moves = %+v, want only black's", moves)
	}
}

func TestCreate_Failed(t *testing.T) {
	s, ts := newTestServer(&fakeReviewer{err: errors.New("engine: session stalled")})
	defer ts.Close()

	_, created := post(t, ts.URL, `{"pgn":"1. e4 *"}`)
	s.Wait()

	_, review := get(t, ts.URL, created.ID)
	if review.Status != reportstore.StatusFailed {
		t.Errorf("Status = %q, want failed", review.Status)
	}
	if review.Error != "engine: session stalled" {
		t.Errorf("Error = %q", review.Error)
	}
	if len(review.Games) != 1 {
		t.Errorf("partial games = %d, want 1", len(review.Games))
	}
}

func TestCreate_BadRequests(t *testing.T) {
	_, ts := newTestServer(&fakeReviewer{})
	defer ts.Close()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"pgn":`},
		{"unknown field", `{"moves":"e4"}`},
		{"neither", `{}`},
		{"both", `{"pgn":"1. e4 *","fens":["a"]}`},
		{"bad color", `{"pgn":"1. e4 *","color":"green"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := post(t, ts.URL, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	_, ts := newTestServer(&fakeReviewer{})
	defer ts.Close()

	if status, _ := get(t, ts.URL, "missing"); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(&fakeReviewer{})
	defer ts.Close()

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestShutdown(t *testing.T) {
	s, ts := newTestServer(&fakeReviewer{})
	defer ts.Close()

	post(t, ts.URL, `{"pgn":"1. e4 *"}`)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
