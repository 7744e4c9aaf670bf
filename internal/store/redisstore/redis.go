// Package redisstore keeps shards as compressed Redis strings.
package redisstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/discochess/gamereview/internal/codec"
	"github.com/discochess/gamereview/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// DefaultPrefix namespaces shard keys.
const DefaultPrefix = "gamereview:shard:"

// kv is the slice of the Redis API the store uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Store is a shard store over Redis.
type Store struct {
	client kv
	closer io.Closer
	codec  codec.Codec
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires shards after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New connects to the Redis server at addr and pings it.
func New(ctx context.Context, addr string, c codec.Codec, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewFromClient(client, c, opts...), nil
}

// NewFromClient wraps an existing client. Close closes the client.
func NewFromClient(client *redis.Client, c codec.Codec, opts ...Option) *Store {
	s := newStore(client, c, opts...)
	s.closer = client
	return s
}

func newStore(client kv, c codec.Codec, opts ...Option) *Store {
	s := &Store{client: client, codec: c, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadShard fetches and decompresses the shard.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.key(shardID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("reading shard: %w", err)
	}
	return store.Decode(s.codec, bytes.NewReader(raw))
}

// WriteShard compresses and stores the shard.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	compressed, err := store.Encode(s.codec, data)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(shardID), compressed, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing shard: %w", err)
	}
	return nil
}

// Close closes the client if the store owns one.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Store) key(shardID int) string {
	return s.prefix + store.ShardName(shardID, s.codec)
}
