// Package config loads beyondsight configuration from .beyondsight.yaml,
// BEYONDSIGHT_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Watch    WatchConfig    `mapstructure:"watch" json:"watch"`
	Query    QueryConfig    `mapstructure:"query" json:"query"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" json:"analyzer"`
}

// DatabaseConfig locates the SQLite snapshot
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
}

// ServerConfig configures the REST surface
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// WatchConfig configures the file watcher
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`
}

// QueryConfig bounds impact queries
type QueryConfig struct {
	// MaxNodes caps every traversal; 0 means unbounded
	MaxNodes int `mapstructure:"maxNodes" json:"maxNodes"`
}

// AnalyzerConfig selects the fact producers
type AnalyzerConfig struct {
	Languages []string `mapstructure:"languages" json:"languages"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: ".beyondsight.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Server:   ServerConfig{Addr: ":9998"},
		Watch:    WatchConfig{Debounce: 500 * time.Millisecond},
		Query:    QueryConfig{MaxNodes: 0},
		Analyzer: AnalyzerConfig{Languages: []string{"go", "java"}},
	}
}

// Load reads configuration. An explicit file must exist; otherwise
// .beyondsight.yaml is looked up in the working directory and $HOME and
// defaults apply when it is absent.
func Load(file string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("watch.debounce", def.Watch.Debounce)
	v.SetDefault("query.maxNodes", def.Query.MaxNodes)
	v.SetDefault("analyzer.languages", def.Analyzer.Languages)

	v.SetEnvPrefix("BEYONDSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".beyondsight")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be text or json"}
	}
	if c.Query.MaxNodes < 0 {
		return &ConfigError{Field: "query.maxNodes", Message: "must not be negative"}
	}
	if c.Watch.Debounce <= 0 {
		return &ConfigError{Field: "watch.debounce", Message: "must be positive"}
	}
	if c.Database.Path == "" {
		return &ConfigError{Field: "database.path", Message: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
