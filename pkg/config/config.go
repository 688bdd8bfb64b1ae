// Package config loads the zones file and the application configuration.
//
// Zones are static: a TOML file read once at startup (see [ReadZones]), or
// a zones table or collection served by the configured source.
//
// Application settings are resolved by viper, in increasing precedence:
// defaults, the config file (territory.toml or territory.yaml in the
// working directory or $XDG_CONFIG_HOME/territory), TERRITORY_* environment
// variables, and command line flags bound with [Load].
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matzehuels/territory/pkg/cache"
	terrors "github.com/matzehuels/territory/pkg/errors"
)

const (
	appName   = "territory"
	envPrefix = "TERRITORY"
)

// Source kinds.
const (
	SourceMemory = "memory"
	SourceSQLite = "sqlite"
	SourceMongo  = "mongo"
	SourceRedis  = "redis"
)

// Config keys.
const (
	KeySourceKind     = "source.kind"
	KeySourceDSN      = "source.dsn"
	KeySourceDatabase = "source.database"
	KeySourceChannel  = "source.channel"
	KeySourcePrefix   = "source.prefix"
	KeyZonesFile      = "zones_file"
	KeyListen         = "listen"
	KeyRecord         = "record"
	KeyPollInterval   = "poll_interval"
	KeyCacheBackend   = "cache.backend"
	KeyCacheDir       = "cache.dir"
	KeyCacheAddr      = "cache.addr"
	KeyLayoutGap      = "layout.gap"
)

// Config is the resolved application configuration.
type Config struct {
	Source       SourceConfig  `mapstructure:"source"`
	ZonesFile    string        `mapstructure:"zones_file"`
	Listen       string        `mapstructure:"listen"`
	Record       string        `mapstructure:"record"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Layout       LayoutConfig  `mapstructure:"layout"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// SourceConfig selects where entities and change events come from.
type SourceConfig struct {
	Kind     string `mapstructure:"kind"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
	Channel  string `mapstructure:"channel"`
	Prefix   string `mapstructure:"prefix"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Addr    string `mapstructure:"addr"`
}

// LayoutConfig tunes world positioning.
type LayoutConfig struct {
	Gap float64 `mapstructure:"gap"`
}

// Options returns the cache options for c.
func (c CacheConfig) Options() cache.Options {
	return cache.Options{Backend: c.Backend, Dir: c.Dir, Addr: c.Addr}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeySourceKind, SourceMemory)
	v.SetDefault(KeySourceDSN, "")
	v.SetDefault(KeySourceDatabase, appName)
	v.SetDefault(KeySourceChannel, "territory:events")
	v.SetDefault(KeySourcePrefix, "territory:")
	v.SetDefault(KeyZonesFile, "")
	v.SetDefault(KeyListen, ":8080")
	v.SetDefault(KeyRecord, "")
	v.SetDefault(KeyPollInterval, "1s")
	v.SetDefault(KeyCacheBackend, cache.BackendMemory)
	v.SetDefault(KeyCacheDir, "")
	v.SetDefault(KeyCacheAddr, "localhost:6379")
	v.SetDefault(KeyLayoutGap, 1.0)
}

// LoadOptions controls [Load].
type LoadOptions struct {
	// File is an explicit config file. When empty the search paths are
	// used and a missing file is not an error.
	File string

	// Flags maps flag names to config keys, e.g. {"listen": KeyListen}.
	// Only flags the user actually set override lower layers.
	Flags    *pflag.FlagSet
	FlagKeys map[string]string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(appName)
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, terrors.Wrap(terrors.ErrCodeInvalidConfig, err, "read config")
		}
	}

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("no flag %q for key %s", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, terrors.Wrap(terrors.ErrCodeInvalidConfig, err, "decode config")
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceMemory, SourceSQLite, SourceMongo, SourceRedis:
	default:
		return terrors.New(terrors.ErrCodeInvalidConfig, "unknown source kind %q", c.Source.Kind)
	}
	if c.Source.Kind != SourceMemory && c.Source.DSN == "" {
		return terrors.New(terrors.ErrCodeInvalidConfig, "source %s needs a dsn", c.Source.Kind)
	}
	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendFile, cache.BackendMemory, cache.BackendRedis:
	default:
		return terrors.New(terrors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == cache.BackendFile && c.Cache.Dir == "" {
		return terrors.New(terrors.ErrCodeInvalidConfig, "file cache needs cache.dir")
	}
	if c.Layout.Gap < 0 {
		return terrors.New(terrors.ErrCodeInvalidConfig, "layout.gap must be non-negative, got %v", c.Layout.Gap)
	}
	if c.PollInterval <= 0 {
		return terrors.New(terrors.ErrCodeInvalidConfig, "poll_interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// configDir returns $XDG_CONFIG_HOME/territory or ~/.config/territory.
func configDir() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
