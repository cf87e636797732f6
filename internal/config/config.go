// Package config loads ueman settings from config.yaml, UEMAN_* environment
// variables and bound command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dreamunreal/ueman/internal/engine"
	"github.com/dreamunreal/ueman/internal/enrich"
	"github.com/dreamunreal/ueman/internal/paths"
	"github.com/dreamunreal/ueman/internal/project"
	"github.com/spf13/viper"
)

// Keys
const (
	KeyDataDir      = "data_dir"
	KeyEngineRoots  = "engine_roots"
	KeyLogLevel     = "log_level"
	KeyWorkers      = "workers"
	KeyScanDepth    = "scan_depth"
	KeySizeCacheTTL = "size_cache_ttl"
	KeyLockStores   = "lock_stores"
)

// EnvPrefix is prepended to upper-cased keys, e.g. UEMAN_DATA_DIR
const EnvPrefix = "UEMAN"

// Config is the resolved configuration
type Config struct {
	DataDir      string        `mapstructure:"data_dir" yaml:"data_dir"`
	EngineRoots  []string      `mapstructure:"engine_roots" yaml:"engine_roots"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	ScanDepth    int           `mapstructure:"scan_depth" yaml:"scan_depth"`
	SizeCacheTTL time.Duration `mapstructure:"size_cache_ttl" yaml:"size_cache_ttl"`
	LockStores   bool          `mapstructure:"lock_stores" yaml:"lock_stores"`
}

// New returns a viper instance with defaults and environment binding set up.
// Flags are bound by the caller before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyEngineRoots, engine.DefaultRoots)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyWorkers, enrich.DefaultWorkers)
	v.SetDefault(KeyScanDepth, project.DefaultScanDepth)
	v.SetDefault(KeySizeCacheTTL, 24*time.Hour)
	v.SetDefault(KeyLockStores, true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and decodes the result. cfgFile overrides the
// default config.yaml in the data directory; an explicit file must exist.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(paths.New(v.GetString(KeyDataDir)).Dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.EngineRoots = engineRoots(v.Get(KeyEngineRoots))
	cfg.DataDir = paths.New(cfg.DataDir).Dir
	if cfg.Workers < 1 {
		cfg.Workers = enrich.DefaultWorkers
	}
	if cfg.ScanDepth < 0 {
		cfg.ScanDepth = project.DefaultScanDepth
	}
	return cfg, nil
}

// engineRoots accepts a YAML list or a single ;-separated string from the
// environment. Paths may contain spaces and commas.
func engineRoots(val any) []string {
	switch t := val.(type) {
	case string:
		return splitRoots([]string{t})
	case []string:
		return splitRoots(t)
	case []any:
		roots := make([]string, 0, len(t))
		for _, r := range t {
			roots = append(roots, fmt.Sprint(r))
		}
		return splitRoots(roots)
	}
	return nil
}

func splitRoots(roots []string) []string {
	var out []string
	for _, r := range roots {
		for _, part := range strings.Split(r, ";") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Layout returns the data directory layout for cfg
func (c Config) Layout() paths.Layout {
	return paths.New(c.DataDir)
}
