// Package store defines where evaluation cache shards live.
//
// Shards are addressed by integer ID and hold sorted JSONL. Backends compress
// shards at rest with a codec and hand callers the decoded bytes.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/discochess/gamereview/internal/codec"
)

// ErrNotFound is returned when a shard does not exist in the store.
var ErrNotFound = errors.New("store: shard not found")

// Store reads and writes decoded shard contents.
type Store interface {
	// ReadShard returns the decoded content of the shard, or ErrNotFound.
	ReadShard(ctx context.Context, shardID int) ([]byte, error)

	// WriteShard replaces the content of the shard.
	WriteShard(ctx context.Context, shardID int, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// ShardName returns the object name for a shard, such as "00042.zst".
func ShardName(shardID int, c codec.Codec) string {
	name := fmt.Sprintf("%05d", shardID)
	if ext := c.Extension(); ext != "" {
		name += "." + ext
	}
	return name
}

// Decode reads all of r through c.
func Decode(c codec.Codec, r io.Reader) ([]byte, error) {
	dec, err := c.Reader(r)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing shard: %w", err)
	}
	return data, nil
}

// Encode compresses data with c.
func Encode(c codec.Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := c.Writer(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compressing shard: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compressing shard: %w", err)
	}
	return buf.Bytes(), nil
}
