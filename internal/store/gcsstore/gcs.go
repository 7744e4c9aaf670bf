// Package gcsstore keeps shards in a Google Cloud Storage bucket, so several
// review servers can share one evaluation cache.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/discochess/gamereview/internal/codec"
	"github.com/discochess/gamereview/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// objects is the slice of the bucket API the store uses.
type objects interface {
	reader(ctx context.Context, key string) (io.ReadCloser, error)
	write(ctx context.Context, key string, data []byte) error
	list(ctx context.Context, prefix string) objectIterator
}

// objectIterator is satisfied by *storage.ObjectIterator.
type objectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// Store is a shard store over a GCS bucket.
type Store struct {
	objects objects
	closer  io.Closer
	prefix  string
	codec   codec.Codec
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix stores shards under prefix/shards/ instead of shards/.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = normalizePrefix(prefix)
	}
}

// New returns a store using application default credentials. The bucket
// must already exist.
func New(ctx context.Context, bucketName string, c codec.Codec, opts ...Option) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	s := &Store{
		objects: bucket{client.Bucket(bucketName)},
		closer:  client,
		codec:   c,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ReadShard downloads and decompresses the shard.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := s.objects.reader(ctx, s.shardKey(shardID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("opening shard: %w", err)
	}
	defer r.Close()

	return store.Decode(s.codec, r)
}

// WriteShard compresses and uploads the shard.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	compressed, err := store.Encode(s.codec, data)
	if err != nil {
		return err
	}
	if err := s.objects.write(ctx, s.shardKey(shardID), compressed); err != nil {
		return fmt.Errorf("uploading shard: %w", err)
	}
	return nil
}

// ShardIDs lists the shards present in the bucket, in ascending order.
func (s *Store) ShardIDs(ctx context.Context) ([]int, error) {
	prefix := s.prefix + "shards/"
	suffix := ""
	if ext := s.codec.Extension(); ext != "" {
		suffix = "." + ext
	}

	var ids []int
	it := s.objects.list(ctx, prefix)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing shards: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if id, err := strconv.Atoi(strings.TrimSuffix(name, suffix)); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Close closes the GCS client.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Store) shardKey(shardID int) string {
	return s.prefix + "shards/" + store.ShardName(shardID, s.codec)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// bucket adapts a storage.BucketHandle to objects.
type bucket struct {
	h *storage.BucketHandle
}

func (b bucket) reader(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.h.Object(key).NewReader(ctx)
}

func (b bucket) write(ctx context.Context, key string, data []byte) error {
	w := b.h.Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b bucket) list(ctx context.Context, prefix string) objectIterator {
	return b.h.Objects(ctx, &storage.Query{Prefix: prefix})
}
