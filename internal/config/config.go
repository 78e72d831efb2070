// Package config loads subsearch settings from defaults, an optional config file,
// a .env file, SUBSEARCH_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SUBSEARCH"
	appName   = "subsearch"
)

// Config holds every runtime setting.
type Config struct {
	APIKey       string        `mapstructure:"api_key"`
	CacheDir     string        `mapstructure:"cache_dir"`
	CacheMaxAge  time.Duration `mapstructure:"cache_max_age"`
	Threshold    int           `mapstructure:"threshold"`
	Workers      int           `mapstructure:"workers"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RateLimit    float64       `mapstructure:"rate_limit"` // transcript requests per second, 0 = unlimited
	Languages    []string      `mapstructure:"languages"`
	APIURL       string        `mapstructure:"api_url"`
	WebURL       string        `mapstructure:"web_url"`
	LogLevel     string        `mapstructure:"log_level"`
}

// flagKeys maps flag names to config keys. Only flags the user actually set override other sources.
var flagKeys = map[string]string{
	"threshold": "threshold",
	"workers":   "workers",
	"cache-dir": "cache_dir",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("cache_dir", ".")
	v.SetDefault("cache_max_age", time.Duration(0))
	v.SetDefault("threshold", 80)
	v.SetDefault("workers", 4)
	v.SetDefault("fetch_timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("languages", []string{"en"})
	v.SetDefault("api_url", "https://www.googleapis.com")
	v.SetDefault("web_url", "https://www.youtube.com")
	v.SetDefault("log_level", "warn")
}

// Load builds the configuration. configFile may be empty, in which case subsearch.{yaml,json,toml}
// is looked up in the working directory and the user config directory. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(appName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", EnvPrefix+"_API_KEY", "YOUTUBE_API_KEY"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		slog.Debug("config file loaded", slog.String("path", v.ConfigFileUsed()))
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Languages = normalizeLanguages(cfg.Languages)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", c.Threshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative")
	}
	if c.CacheMaxAge < 0 {
		return fmt.Errorf("cache_max_age cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: use debug, info, warn or error", name)
	}
	return level, nil
}

// normalizeLanguages splits comma-separated entries and drops blanks.
func normalizeLanguages(langs []string) []string {
	var out []string
	for _, entry := range langs {
		for _, lang := range strings.Split(entry, ",") {
			if lang = strings.TrimSpace(lang); lang != "" {
				out = append(out, lang)
			}
		}
	}
	if len(out) == 0 {
		return []string{"en"}
	}
	return out
}
