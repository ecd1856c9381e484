// Package config loads deployment settings from a YAML file and
// MAINTSCHED_* environment variables.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/fieldops/maintsched/pkg/security"
	"github.com/fieldops/maintsched/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. MAINTSCHED_HTTP_ADDR.
const EnvPrefix = "MAINTSCHED"

// Config is the full deployment configuration.
type Config struct {
	Driver            string        `mapstructure:"driver"`
	DSN               string        `mapstructure:"dsn"`
	Timezone          string        `mapstructure:"timezone"`
	MaxOccurrences    int           `mapstructure:"max_occurrences"`
	ConversionLockTTL time.Duration `mapstructure:"conversion_lock_ttl"`

	HTTP HTTPConfig `mapstructure:"http"`
	Log  LogConfig  `mapstructure:"log"`
	Pool PoolConfig `mapstructure:"pool"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RateLimit       float64       `mapstructure:"rate_limit"` // Requests per second per client, 0 disables
	Burst           int           `mapstructure:"burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// PoolConfig selects a storage pool preset and optional overrides.
type PoolConfig struct {
	Preset       string `mapstructure:"preset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "maintsched.db")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("max_occurrences", security.MaxOccurrences)
	v.SetDefault("conversion_lock_ttl", 5*time.Minute)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit", 20.0)
	v.SetDefault("http.burst", 40)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("pool.preset", "")
	v.SetDefault("pool.max_open_conns", 0)
	v.SetDefault("pool.max_idle_conns", 0)
}

// Load reads path, or maintsched.yaml from the working directory or
// /etc/maintsched when path is empty, then applies environment overrides.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("maintsched")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/maintsched")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("driver must be sqlite or postgres, got %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.MaxOccurrences < 1 || c.MaxOccurrences > security.MaxOccurrences {
		return errors.Errorf("max_occurrences must be between 1 and %d, got %d", security.MaxOccurrences, c.MaxOccurrences)
	}
	if c.ConversionLockTTL <= 0 {
		return errors.Errorf("conversion_lock_ttl must be positive, got %s", c.ConversionLockTTL)
	}
	if c.HTTP.RateLimit < 0 {
		return errors.Errorf("http.rate_limit must not be negative, got %v", c.HTTP.RateLimit)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := c.StoragePool(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, the reference zone for calendar arithmetic.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	return loc, nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "log.level %q", c.Log.Level)
	}
	return level, nil
}

// StoragePool builds the connection pool settings. SQLite defaults to the
// single-connection preset.
func (c *Config) StoragePool() (storage.PoolConfig, error) {
	preset := c.Pool.Preset
	if preset == "" && c.Driver == "sqlite" {
		preset = "sqlite"
	}
	pool, err := storage.PoolPreset(preset)
	if err != nil {
		return storage.PoolConfig{}, errors.Wrap(err, "pool.preset")
	}
	var opts []storage.PoolOption
	if c.Pool.MaxOpenConns > 0 {
		opts = append(opts, storage.MaxOpenConns(c.Pool.MaxOpenConns))
	}
	if c.Pool.MaxIdleConns > 0 {
		opts = append(opts, storage.MaxIdleConns(c.Pool.MaxIdleConns))
	}
	pool = pool.With(opts...)
	if err := pool.Validate(); err != nil {
		return storage.PoolConfig{}, errors.Wrap(err, "pool")
	}
	return pool, nil
}
