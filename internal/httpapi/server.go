// Package httpapi serves game reviews over HTTP.
//
// A review is requested with POST /reviews and runs in the background;
// clients poll GET /reviews/{id} until its status leaves "analyzing".
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/discochess/gamereview"
	"github.com/discochess/gamereview/internal/model"
	"github.com/discochess/gamereview/internal/reportstore"
)

// MaxBodyBytes bounds the size of a review request.
const MaxBodyBytes = 1 << 20

// Reviewer is the part of *gamereview.Reviewer the server uses.
type Reviewer interface {
	ReviewPGN(ctx context.Context, pgn io.Reader) ([]gamereview.GameReview, error)
	ReviewFENs(ctx context.Context, fens []string) (*gamereview.Report, error)
}

// Compile-time check that the library reviewer satisfies Reviewer.
var _ Reviewer = (*gamereview.Reviewer)(nil)

// Server routes review requests to a Reviewer and keeps results in a
// reportstore.Store.
type Server struct {
	reviewer Reviewer
	store    reportstore.Store
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer sets the registry served on /metrics.
// If not set, prometheus.DefaultGatherer is used.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New returns a Server. Reviews run until Shutdown.
func New(reviewer Reviewer, store reportstore.Store, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		reviewer: reviewer,
		store:    store,
		gatherer: prometheus.DefaultGatherer,
		logger:   zap.NewNop(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("httpapi")
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/reviews", s.handleCreate)
	r.Get("/reviews/{id}", s.handleGet)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Shutdown cancels running reviews and waits for them to record their
// outcome, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every started review has finished.
func (s *Server) Wait() {
	s.jobs.Wait()
}

// createRequest is the body of POST /reviews. Exactly one of PGN and FENs
// is set. Color, if set, keeps only that side's moves.
type createRequest struct {
	PGN   string   `json:"pgn,omitempty"`
	FENs  []string `json:"fens,omitempty"`
	Color string   `json:"color,omitempty"`
}

type createResponse struct {
	ID     string             `json:"id"`
	Status reportstore.Status `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}

	color, err := parseColor(req.Color)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	hasPGN, hasFENs := strings.TrimSpace(req.PGN) != "", len(req.FENs) > 0
	if hasPGN == hasFENs {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "exactly one of pgn and fens is required"})
		return
	}

	now := s.now().UTC()
	review := &reportstore.Review{
		ID:        uuid.New().String(),
		Status:    reportstore.StatusAnalyzing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(r.Context(), review); err != nil {
		s.logger.Error("storing review", zap.String("id", review.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storing review failed"})
		return
	}

	s.jobs.Add(1)
	go s.run(review, req, color)

	s.logger.Info("review accepted", zap.String("id", review.ID), zap.Bool("pgn", hasPGN))
	writeJSON(w, http.StatusAccepted, createResponse{ID: review.ID, Status: review.Status})
}

// run performs one review and records its outcome.
func (s *Server) run(review *reportstore.Review, req createRequest, color *model.Color) {
	defer s.jobs.Done()

	var (
		games []gamereview.GameReview
		err   error
	)
	if req.PGN != "" {
		games, err = s.reviewer.ReviewPGN(s.ctx, strings.NewReader(req.PGN))
	} else {
		var report *gamereview.Report
		report, err = s.reviewer.ReviewFENs(s.ctx, req.FENs)
		if report != nil {
			games = []gamereview.GameReview{{Title: "game", Report: report}}
		}
	}

	if color != nil {
		for i := range games {
			if games[i].Report != nil {
				filtered := *games[i].Report
				filtered.Moves = filtered.ByColor(*color)
				games[i].Report = &filtered
			}
		}
	}

	review.Games = games
	review.Status = reportstore.StatusReady
	if err != nil {
		review.Status = reportstore.StatusFailed
		review.Error = err.Error()
	}
	review.UpdatedAt = s.now().UTC()

	// Outcomes of cancelled reviews are still recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if perr := s.store.Put(ctx, review); perr != nil {
		s.logger.Error("storing review outcome", zap.String("id", review.ID), zap.Error(perr))
		return
	}
	s.logger.Info("review finished",
		zap.String("id", review.ID),
		zap.String("status", string(review.Status)),
		zap.Int("games", len(games)),
	)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	review, err := s.store.Get(r.Context(), id)
	if errors.Is(err, reportstore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "review not found"})
		return
	}
	if err != nil {
		s.logger.Error("reading review", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "reading review failed"})
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseColor(s string) (*model.Color, error) {
	if s == "" || s == "all" {
		return nil, nil
	}
	c, err := model.ParseColor(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return &c, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
