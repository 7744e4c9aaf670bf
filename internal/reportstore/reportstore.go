// Package reportstore keeps the reviews requested over the HTTP API.
package reportstore

import (
	"context"
	"errors"
	"time"

	"github.com/discochess/gamereview"
)

// ErrNotFound indicates no review has the requested id.
var ErrNotFound = errors.New("reportstore: review not found")

// Status is the lifecycle state of a review.
type Status string

const (
	// StatusAnalyzing reviews are waiting for or running on the engine.
	StatusAnalyzing Status = "analyzing"
	// StatusReady reviews hold a complete report for every game.
	StatusReady Status = "ready"
	// StatusFailed reviews stopped with an error. Games reviewed before the
	// failure, and the failed game's partial report, are kept.
	StatusFailed Status = "failed"
)

// Review is one requested review.
type Review struct {
	ID        string                  `json:"id" bson:"_id"`
	Status    Status                  `json:"status" bson:"status"`
	Error     string                  `json:"error,omitempty" bson:"error,omitempty"`
	Games     []gamereview.GameReview `json:"games,omitempty" bson:"games,omitempty"`
	CreatedAt time.Time               `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time               `json:"updated_at" bson:"updated_at"`
}

// Store persists reviews by id.
type Store interface {
	// Put creates or replaces the review with r.ID.
	Put(ctx context.Context, r *Review) error

	// Get returns the review with id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Review, error)

	// Close releases the store's resources.
	Close(ctx context.Context) error
}
