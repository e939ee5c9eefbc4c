// Package config loads facevec process configuration from a YAML file and
// FACEVEC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/hupe1980/facevec"
	"github.com/hupe1980/facevec/persistence"
)

// EnvPrefix prefixes every environment variable, e.g. FACEVEC_BACKEND_BUCKET.
const EnvPrefix = "FACEVEC"

// Backend types.
const (
	BackendLocal = "local"
	BackendMinIO = "minio"
	BackendS3    = "s3"
)

// Config is the complete process configuration.
type Config struct {
	DataDir            string        `mapstructure:"data_dir"`
	Dimension          int           `mapstructure:"dimension"`
	Compression        string        `mapstructure:"compression"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFormat          string        `mapstructure:"log_format"`
	MemoryLimitBytes   int64         `mapstructure:"memory_limit_bytes"`
	IOLimitBytesPerSec int64         `mapstructure:"io_limit_bytes_per_sec"`
	PersistRetries     int           `mapstructure:"persist_retries"`
	Threshold          float64       `mapstructure:"threshold"`
	Backend            BackendConfig `mapstructure:"backend"`
}

// BackendConfig selects where snapshots are stored.
type BackendConfig struct {
	Type      string `mapstructure:"type"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
	Region    string `mapstructure:"region"`
}

// Load reads configuration. An empty path searches for facevec.yaml in the
// working directory and ./configs; a missing file is not an error then.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("facevec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", facevec.DefaultDataDir)
	v.SetDefault("dimension", facevec.DefaultDimension)
	v.SetDefault("compression", "none")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("memory_limit_bytes", 0)
	v.SetDefault("io_limit_bytes_per_sec", 0)
	v.SetDefault("persist_retries", facevec.DefaultPersistRetries)
	v.SetDefault("threshold", 0.6)

	v.SetDefault("backend.type", BackendLocal)
	v.SetDefault("backend.bucket", "")
	v.SetDefault("backend.prefix", "")
	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.access_key", "")
	v.SetDefault("backend.secret_key", "")
	v.SetDefault("backend.secure", true)
	v.SetDefault("backend.region", "")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	if c.MemoryLimitBytes < 0 || c.IOLimitBytesPerSec < 0 {
		return errors.New("resource limits must not be negative")
	}
	if c.PersistRetries < 0 {
		return fmt.Errorf("persist_retries must not be negative, got %d", c.PersistRetries)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %g", c.Threshold)
	}
	if _, err := persistence.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}

	switch c.Backend.Type {
	case BackendLocal:
		if c.DataDir == "" {
			return errors.New("data_dir is required for the local backend")
		}
	case BackendMinIO:
		if c.Backend.Endpoint == "" {
			return errors.New("backend.endpoint is required for minio")
		}
		fallthrough
	case BackendS3:
		if c.Backend.Bucket == "" {
			return fmt.Errorf("backend.bucket is required for %s", c.Backend.Type)
		}
	default:
		return fmt.Errorf("unknown backend.type %q", c.Backend.Type)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Logger builds the configured logger.
func (c *Config) Logger() *facevec.Logger {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if c.LogFormat == "json" {
		return facevec.NewJSONLogger(level)
	}
	return facevec.NewTextLogger(level)
}

// IndexOptions returns the facevec options for everything but the blob
// backend, which the caller adds.
func (c *Config) IndexOptions() []facevec.Option {
	compression, _ := persistence.ParseCompression(c.Compression)

	return []facevec.Option{
		facevec.WithDataDir(c.DataDir),
		facevec.WithDimension(c.Dimension),
		facevec.WithCompression(compression),
		facevec.WithMemoryLimit(c.MemoryLimitBytes),
		facevec.WithIOLimit(c.IOLimitBytesPerSec),
		facevec.WithPersistRetries(c.PersistRetries),
		facevec.WithLogger(c.Logger()),
	}
}
