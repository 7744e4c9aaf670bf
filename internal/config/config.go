// Package config loads gamereview settings from a YAML file and
// GAMEREVIEW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/discochess/gamereview/internal/classify"
	"github.com/discochess/gamereview/internal/engine"
	"github.com/discochess/gamereview/internal/evalcache"
)

// EnvPrefix prefixes every environment variable. Nested keys join with an
// underscore, so engine.path is GAMEREVIEW_ENGINE_PATH.
const EnvPrefix = "GAMEREVIEW"

// Config is the full application configuration.
type Config struct {
	Engine     EngineConfig  `mapstructure:"engine"`
	Search     engine.Config `mapstructure:"search"`
	Classifier string        `mapstructure:"classifier"`
	Cache      CacheConfig   `mapstructure:"cache"`
	Server     ServerConfig  `mapstructure:"server"`
	Log        LogConfig     `mapstructure:"log"`
	Metrics    string        `mapstructure:"metrics"`
}

// EngineConfig selects the UCI engine.
type EngineConfig struct {
	Path string `mapstructure:"path"`

	// Workers above one evaluates positions on a pool of processes.
	Workers int `mapstructure:"workers"`
	Hash    int `mapstructure:"hash"`
	Threads int `mapstructure:"threads"`
}

// CacheConfig selects where finished evaluations are kept.
type CacheConfig struct {
	// Backend is one of none, disk, gcs, s3 or redis.
	Backend    string `mapstructure:"backend"`
	Dir        string `mapstructure:"dir"`
	ShardCache int    `mapstructure:"shard_cache"`
	MinDepth   int    `mapstructure:"min_depth"`

	// Remote backends have no manifest; these fix their layout.
	Strategy    string `mapstructure:"strategy"`
	TotalShards int    `mapstructure:"total_shards"`
	Compression string `mapstructure:"compression"`

	Bucket   string        `mapstructure:"bucket"`
	Prefix   string        `mapstructure:"prefix"`
	Region   string        `mapstructure:"region"`
	Endpoint string        `mapstructure:"endpoint"`
	Addr     string        `mapstructure:"addr"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// Reports is memory or mongo.
	Reports       string `mapstructure:"reports"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]any{
	"engine.path":           "stockfish",
	"engine.workers":        1,
	"engine.hash":           64,
	"engine.threads":        1,
	"search.search_depth":   engine.DefaultSearchDepth,
	"search.min_depth":      engine.DefaultMinDepth,
	"search.multipv":        engine.DefaultMultiPV,
	"search.idle_timeout":   30 * time.Second,
	"classifier":            "default",
	"cache.backend":         "none",
	"cache.dir":             "./cache",
	"cache.shard_cache":     evalcache.DefaultShardCache,
	"cache.min_depth":       0,
	"cache.strategy":        "material",
	"cache.total_shards":    evalcache.DefaultTotalShards,
	"cache.compression":     "zstd",
	"cache.bucket":          "",
	"cache.prefix":          "",
	"cache.region":          "",
	"cache.endpoint":        "",
	"cache.addr":            "localhost:6379",
	"cache.ttl":             time.Duration(0),
	"server.addr":           ":8080",
	"server.reports":        "memory",
	"server.mongo_uri":      "mongodb://localhost:27017",
	"server.mongo_database": "gamereview",
	"log.level":             "info",
	"log.development":       false,
	"metrics":               "prometheus",
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path, if not empty, and overlays the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that Load cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if _, err := classify.Preset(c.Classifier); err != nil {
		errs = append(errs, err)
	}
	switch c.Cache.Backend {
	case "none", "disk", "gcs", "s3", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if (c.Cache.Backend == "gcs" || c.Cache.Backend == "s3") && c.Cache.Bucket == "" {
		errs = append(errs, fmt.Errorf("cache backend %s needs a bucket", c.Cache.Backend))
	}
	switch c.Server.Reports {
	case "memory", "mongo":
	default:
		errs = append(errs, fmt.Errorf("unknown report store %q", c.Server.Reports))
	}
	switch c.Metrics {
	case "prometheus", "log", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown metrics sink %q", c.Metrics))
	}
	if c.Search.MinDepth > c.Search.SearchDepth {
		errs = append(errs, fmt.Errorf("min depth %d exceeds search depth %d", c.Search.MinDepth, c.Search.SearchDepth))
	}
	return errors.Join(errs...)
}

// ClassifierConfig returns the configured preset.
func (c *Config) ClassifierConfig() classify.Config {
	cfg, err := classify.Preset(c.Classifier)
	if err != nil {
		return classify.Default()
	}
	return cfg
}
