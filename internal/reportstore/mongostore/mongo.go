// Package mongostore keeps reviews in a MongoDB collection, one document
// per review keyed by its id.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/discochess/gamereview/internal/reportstore"
)

// Defaults for the database and collection reviews are written to.
const (
	DefaultDatabase   = "gamereview"
	DefaultCollection = "reviews"
)

const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
)

// collection is the part of *mongo.Collection the store uses.
type collection interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
}

// Store implements reportstore.Store on MongoDB.
type Store struct {
	client *mongo.Client
	coll   collection
	logger *zap.Logger
}

// Compile-time check that Store implements reportstore.Store.
var _ reportstore.Store = (*Store)(nil)

type config struct {
	database   string
	collection string
	logger     *zap.Logger
}

// Option configures a Store.
type Option func(*config)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(c *config) {
		c.database = name
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(c *config) {
		c.collection = name
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New connects to the deployment at uri and pings it.
func New(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	cfg := config{
		database:   DefaultDatabase,
		collection: DefaultCollection,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := newStore(client.Database(cfg.database).Collection(cfg.collection), cfg.logger)
	s.client = client
	s.logger.Info("connected to mongodb",
		zap.String("database", cfg.database),
		zap.String("collection", cfg.collection),
	)
	return s, nil
}

func newStore(coll collection, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{coll: coll, logger: logger.Named("mongostore")}
}

// Put upserts r by id.
func (s *Store) Put(ctx context.Context, r *reportstore.Review) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("writing review %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the review with id.
func (s *Store) Get(ctx context.Context, id string) (*reportstore.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	var r reportstore.Review
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, reportstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading review %s: %w", id, err)
	}
	return &r, nil
}

// Close disconnects from the deployment.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
