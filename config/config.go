// Package config enables config file parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/streaming/syncer"
)

// Config contains the CLI configuration.
type Config struct {
	Log       *LogConfig       `koanf:"log"`
	Metrics   *MetricsConfig   `koanf:"metrics"`
	Catalog   *CatalogConfig   `koanf:"catalog"`
	Streaming *StreamingConfig `koanf:"streaming"`
	Storage   *StorageConfig   `koanf:"storage_node"`
	Server    *ServerConfig    `koanf:"server"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	if cfg.Catalog != nil {
		if err := cfg.Catalog.Validate(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	if cfg.Streaming != nil {
		if err := cfg.Streaming.Validate(); err != nil {
			return fmt.Errorf("streaming: %w", err)
		}
	}
	if cfg.Storage != nil {
		if err := cfg.Storage.Validate(); err != nil {
			return fmt.Errorf("storage_node: %w", err)
		}
	}
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	return nil
}

// CatalogConfig points at the JSON catalog of chains and storage nodes.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

func (cfg *CatalogConfig) Validate() error {
	if cfg.Path == "" {
		return fmt.Errorf("no catalog path provided")
	}
	return nil
}

// Block write targets of the streaming pipeline.
const (
	// TargetLocal writes through storage engines built in-process from
	// the storage node named in the streaming config.
	TargetLocal = "local"
	// TargetRemote writes to storage nodes over JSON-RPC.
	TargetRemote = "remote"
)

// Postgres write modes.
const (
	WriteModePhased        = "phased"
	WriteModeTransactional = "transactional"
)

// StreamingConfig configures the finalized block pipeline.
type StreamingConfig struct {
	// ChannelCapacity bounds the queue between a syncer and its consumer.
	ChannelCapacity int `koanf:"channel_capacity"`
	// Overflow is "block" or "drop_oldest".
	Overflow string `koanf:"overflow"`

	// Target is "local" or "remote". Empty means remote.
	Target string `koanf:"target"`
	// StorageNode names the catalog storage node whose engines are used
	// in-process when Target is local.
	StorageNode string `koanf:"storage_node"`
	// WriteMode is the postgres write mode for local writes.
	WriteMode string `koanf:"write_mode"`

	RPC *ChainRPCConfig `koanf:"rpc"`

	// Cache holds runtime metadata across restarts.
	Cache *CacheConfig `koanf:"cache"`
}

// Validate validates the streaming configuration.
func (cfg *StreamingConfig) Validate() error {
	if cfg.ChannelCapacity < 0 {
		return fmt.Errorf("negative channel_capacity %d", cfg.ChannelCapacity)
	}
	if cfg.Overflow != "" {
		if err := syncer.OverflowPolicy(cfg.Overflow).Validate(); err != nil {
			return err
		}
	}
	switch cfg.Target {
	case "", TargetRemote:
	case TargetLocal:
		if cfg.StorageNode == "" {
			return fmt.Errorf("target %s requires storage_node", TargetLocal)
		}
	default:
		return fmt.Errorf("invalid target '%s'", cfg.Target)
	}
	if err := ValidateWriteMode(cfg.WriteMode); err != nil {
		return err
	}
	if cfg.RPC != nil {
		if err := cfg.RPC.Validate(); err != nil {
			return fmt.Errorf("rpc: %w", err)
		}
	}
	if cfg.Cache != nil {
		return cfg.Cache.Validate()
	}
	return nil
}

// ValidateWriteMode accepts the postgres write modes. Empty means phased.
func ValidateWriteMode(mode string) error {
	switch mode {
	case "", WriteModePhased, WriteModeTransactional:
		return nil
	default:
		return fmt.Errorf("invalid write_mode '%s'", mode)
	}
}

// ChainRPCConfig bounds traffic to chain nodes.
type ChainRPCConfig struct {
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	CallTimeout       time.Duration `koanf:"call_timeout"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	MaxPollInterval   time.Duration `koanf:"max_poll_interval"`
}

func (cfg *ChainRPCConfig) Validate() error {
	if cfg.RequestsPerSecond < 0 {
		return fmt.Errorf("negative requests_per_second")
	}
	if cfg.MaxPollInterval != 0 && cfg.MaxPollInterval < cfg.PollInterval {
		return fmt.Errorf("max_poll_interval %s below poll_interval %s", cfg.MaxPollInterval, cfg.PollInterval)
	}
	return nil
}

type CacheConfig struct {
	// CacheDir is the directory where the cache data is stored
	CacheDir string `koanf:"cache_dir"`
}

func (cfg *CacheConfig) Validate() error {
	if cfg.CacheDir == "" {
		return fmt.Errorf("invalid cache filepath")
	}
	return nil
}

// StorageConfig configures a storage node process.
type StorageConfig struct {
	// Name selects this node's entry in the catalog.
	Name string `koanf:"name"`

	// WriteMode is the postgres write mode.
	WriteMode string `koanf:"write_mode"`

	// Migrations is a golang-migrate source URL, e.g.
	// file://storage/migrations. Empty means the schema built into the
	// binary.
	Migrations string `koanf:"migrations"`

	// DisableMigrations skips schema migrations on startup.
	DisableMigrations bool `koanf:"disable_migrations"`

	// If true, we'll first delete all tables in each chain database.
	WipeStorage bool `koanf:"DANGER__WIPE_STORAGE_ON_STARTUP"`
}

// Validate validates the storage node configuration.
func (cfg *StorageConfig) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("no storage node name provided")
	}
	return ValidateWriteMode(cfg.WriteMode)
}

// ServerConfig contains the query API server configuration.
type ServerConfig struct {
	// Endpoint overrides the catalog http_endpoint of the storage node.
	Endpoint string `koanf:"endpoint"`

	// RequestTimeout bounds each API request.
	RequestTimeout *time.Duration `koanf:"request_timeout"`

	// CORSAllowedOrigins is passed to the CORS middleware. Empty allows all.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.RequestTimeout != nil && *cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invalid request_timeout %s", *cfg.RequestTimeout)
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	var level log.Level
	return level.Set(cfg.Level)
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	PullEndpoint string `koanf:"pull_endpoint"`
	// PprofEndpoint serves runtime profiles when set.
	PprofEndpoint string `koanf:"pprof_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// InitConfig initializes configuration from file.
func InitConfig(f string) (*Config, error) {
	return initConfig(file.Provider(f))
}

func initConfig(p koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}

	// Load environment variables and merge into the loaded config.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		// `__` is used as a hierarchy delimiter.
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Unmarshal into config.
	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	// Validate config.
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
