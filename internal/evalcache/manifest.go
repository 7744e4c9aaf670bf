package evalcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/discochess/gamereview/internal/codec"
	"github.com/discochess/gamereview/internal/codec/gzipcodec"
	"github.com/discochess/gamereview/internal/codec/noopcodec"
	"github.com/discochess/gamereview/internal/codec/zstdcodec"
	"github.com/discochess/gamereview/internal/shard"
	"github.com/discochess/gamereview/internal/shard/fnvshard"
	"github.com/discochess/gamereview/internal/shard/materialshard"
	"github.com/discochess/gamereview/internal/stats"
	"github.com/discochess/gamereview/internal/store"
	"github.com/discochess/gamereview/internal/store/cachedstore"
	"github.com/discochess/gamereview/internal/store/diskstore"
)

// ManifestVersion is the layout version written by this package.
const ManifestVersion = 1

// ManifestFilename is the manifest's name inside a cache directory.
const ManifestFilename = "manifest.json"

// Manifest fixes how positions of a cache directory map to shard files.
// Changing any field after entries are written orphans them.
type Manifest struct {
	Version     int       `json:"version"`
	TotalShards int       `json:"total_shards"`
	Strategy    string    `json:"strategy"`
	Compression string    `json:"compression"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultManifest describes a new cache directory.
func DefaultManifest() *Manifest {
	return &Manifest{
		Version:     ManifestVersion,
		TotalShards: DefaultTotalShards,
		Strategy:    materialshard.Name,
		Compression: "zstd",
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks that the manifest names known components.
func (m *Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.TotalShards <= 0 {
		return fmt.Errorf("invalid shard count %d", m.TotalShards)
	}
	if _, err := StrategyByName(m.Strategy); err != nil {
		return err
	}
	if _, err := CodecByName(m.Compression); err != nil {
		return err
	}
	return nil
}

// WriteManifest writes m to dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFilename), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest of dir. A missing manifest is reported
// with an error satisfying errors.Is(err, os.ErrNotExist).
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", filepath.Join(dir, ManifestFilename), err)
	}
	return &m, nil
}

// loadOrCreateManifest reads dir's manifest, writing DefaultManifest first
// if the directory has none.
func loadOrCreateManifest(dir string) (*Manifest, error) {
	m, err := ReadManifest(dir)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	m = DefaultManifest()
	if err := WriteManifest(dir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// StrategyByName returns the shard strategy recorded in a manifest.
func StrategyByName(name string) (shard.Strategy, error) {
	switch name {
	case materialshard.Name:
		return materialshard.New(), nil
	case fnvshard.Name:
		return fnvshard.New(), nil
	}
	return nil, fmt.Errorf("unknown shard strategy %q", name)
}

// CodecByName returns the codec recorded in a manifest.
func CodecByName(name string) (codec.Codec, error) {
	switch name {
	case "zstd", "zst":
		return zstdcodec.New(), nil
	case "gzip", "gz":
		return gzipcodec.New(), nil
	case "none", "":
		return noopcodec.New(), nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}

// openDiskStore returns the shard store of dir, fronted by an LRU of
// cacheSize decoded shards when cacheSize is positive.
func openDiskStore(dir, compression string, cacheSize int, collector stats.Collector) (store.Store, error) {
	c, err := CodecByName(compression)
	if err != nil {
		return nil, err
	}
	disk, err := diskstore.New(dir, c)
	if err != nil {
		return nil, fmt.Errorf("opening cache directory: %w", err)
	}
	return CachedStore(disk, cacheSize, collector)
}

// CachedStore fronts st with an LRU of size decoded shards. A size of zero
// or less returns st unchanged.
func CachedStore(st store.Store, size int, collector stats.Collector) (store.Store, error) {
	if size <= 0 {
		return st, nil
	}
	backend, err := cachedstore.NewLRU(size, collector)
	if err != nil {
		return nil, fmt.Errorf("creating shard cache: %w", err)
	}
	return cachedstore.New(st, backend), nil
}
