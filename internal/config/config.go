package config

import (
	"errors"
	"fmt"
	"os"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/psantana5/costime/pkg/costime"
	"github.com/psantana5/costime/pkg/logging"
	"github.com/psantana5/costime/pkg/store"
	"github.com/psantana5/costime/pkg/tracing"
)

// EnvPrefix prefixes every environment override, e.g. COSTIME_LOG_LEVEL
const EnvPrefix = "COSTIME"

// Config is the effective configuration after file, env and flags
type Config struct {
	Tag     string         `mapstructure:"tag" yaml:"tag" json:"tag"`
	Format  string         `mapstructure:"format" yaml:"format" json:"format"`
	Log     LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Metrics MetricsConfig  `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	History HistoryConfig  `mapstructure:"history" yaml:"history" json:"history"`
	Serve   ServeConfig    `mapstructure:"serve" yaml:"serve" json:"serve"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json" json:"json"`
	Dir   string `mapstructure:"dir" yaml:"dir" json:"dir"` // empty: stdout only
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

type HistoryConfig struct {
	Type string `mapstructure:"type" yaml:"type" json:"type"` // memory, sqlite or postgres; empty: sqlite if path is set
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	DSN  string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// StoreConfig maps the history section onto store.Config
func (h HistoryConfig) StoreConfig() store.Config {
	return store.Config{Type: h.Type, Path: h.Path, DSN: h.DSN}
}

var dsnPassword = regexp.MustCompile(`(password\s*=\s*)('[^']*'|\S+)`)

// Redacted returns a copy safe to print: any password in the history DSN is
// masked, in both URL and key=value form.
func (c Config) Redacted() Config {
	c.History.DSN = redactDSN(c.History.DSN)
	return c
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			return u.Redacted()
		}
		return dsn
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}xxxxx")
}

type ServeConfig struct {
	Addr           string  `mapstructure:"addr" yaml:"addr" json:"addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// SetDefaults registers every key so env overrides apply even without a file
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tag", costime.DefaultTag)
	v.SetDefault("format", costime.FormatCore.Name)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.dir", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "costime")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("history.type", "")
	v.SetDefault("history.path", "")
	v.SetDefault("history.dsn", "")
	v.SetDefault("serve.addr", ":9095")
	v.SetDefault("serve.rate_limit_rps", 200.0)
	v.SetDefault("serve.rate_limit_burst", 50)
}

// DefaultDir returns $HOME/.costime
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".costime"), nil
}

// Load reads cfgFile (or config.yaml from DefaultDir when empty) into v and
// decodes the result. A missing default file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	if _, err := costime.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Tag == "" {
		return errors.New("invalid config: tag must not be empty")
	}
	switch c.History.Type {
	case "", "memory", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("invalid config: unknown history type %q", c.History.Type)
	}
	if c.Serve.RateLimitRPS < 0 || c.Serve.RateLimitBurst < 0 {
		return errors.New("invalid config: rate limits must not be negative")
	}
	return nil
}

// StopwatchFormat returns the configured line format
func (c *Config) StopwatchFormat() costime.Format {
	f, err := costime.ParseFormat(c.Format)
	if err != nil {
		return costime.FormatCore
	}
	return f
}

// NewLogger builds the logger described by c.Log for the given command
func (c *Config) NewLogger(name string) (*logging.Logger, error) {
	level := logging.ParseLevel(c.Log.Level)
	if c.Log.Dir == "" {
		return logging.NewLogger(level, c.Log.JSON), nil
	}
	return logging.NewFileLogger(c.Log.Dir, "costime", name, level, c.Log.JSON)
}
