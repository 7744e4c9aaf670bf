// Package diskstore keeps shards as compressed files under a cache directory.
package diskstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/discochess/gamereview/internal/codec"
	"github.com/discochess/gamereview/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store reads and writes shards under root/shards.
type Store struct {
	root  string
	codec codec.Codec
}

// New returns a store rooted at root, creating root/shards if needed.
func New(root string, c codec.Codec) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat cache directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if err := os.MkdirAll(filepath.Join(root, "shards"), 0o755); err != nil {
		return nil, fmt.Errorf("creating shard directory: %w", err)
	}
	return &Store{root: root, codec: c}, nil
}

// ReadShard reads and decompresses the shard.
func (s *Store) ReadShard(ctx context.Context, shardID int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compressed, err := os.ReadFile(s.shardPath(shardID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("reading shard: %w", err)
	}
	return store.Decode(s.codec, bytes.NewReader(compressed))
}

// WriteShard compresses data and replaces the shard file atomically.
func (s *Store) WriteShard(ctx context.Context, shardID int, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	compressed, err := store.Encode(s.codec, data)
	if err != nil {
		return err
	}

	path := s.shardPath(shardID)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shard-*")
	if err != nil {
		return fmt.Errorf("creating temp shard: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("writing shard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing shard: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing shard: %w", err)
	}
	return nil
}

// ShardIDs lists the shards present on disk in ascending order.
func (s *Store) ShardIDs() ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "shards"))
	if err != nil {
		return nil, fmt.Errorf("listing shards: %w", err)
	}

	suffix := ""
	if ext := s.codec.Extension(); ext != "" {
		suffix = "." + ext
	}

	var ids []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		base := strings.TrimSuffix(name, suffix)
		if strings.Contains(base, ".") {
			continue
		}
		if id, err := strconv.Atoi(base); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Root returns the cache directory.
func (s *Store) Root() string {
	return s.root
}

// Codec returns the codec shard files are written with.
func (s *Store) Codec() codec.Codec {
	return s.codec
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) shardPath(shardID int) string {
	return filepath.Join(s.root, "shards", store.ShardName(shardID, s.codec))
}
