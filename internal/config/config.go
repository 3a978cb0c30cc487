// Package config assembles runtime configuration for the veracity service
// from defaults, an optional YAML config file, and VERACITY_* environment
// variables, in that order of increasing priority.
package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/truthgraph/veracity/internal/policy"
)

// Config is the full runtime configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `json:"store" yaml:"store" mapstructure:"store"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	Evaluator EvaluatorConfig `json:"evaluator" yaml:"evaluator" mapstructure:"evaluator"`
	Policy    policy.Policy   `json:"policy" yaml:"policy" mapstructure:"policy"`
}

// ServerConfig configures the HTTP/WebSocket listener
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// VoteRatePerSecond and VoteBurst bound how fast a single voter may cast
	// votes through the API.
	VoteRatePerSecond float64 `json:"vote_rate_per_second" yaml:"vote_rate_per_second" mapstructure:"vote_rate_per_second"`
	VoteBurst         int     `json:"vote_burst" yaml:"vote_burst" mapstructure:"vote_burst"`

	// EventBuffer is the per-subscriber event channel depth.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer" mapstructure:"event_buffer"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	// Backend is "memory" or "badger".
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`
	// Path is the badger data directory; ignored for the memory backend.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig configures structured logging
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `json:"development" yaml:"development" mapstructure:"development"`
}

// EvaluatorConfig configures the optional automated challenge evaluator
type EvaluatorConfig struct {
	// Provider is "none" or "openai".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			VoteRatePerSecond: 2,
			VoteBurst:         5,
			EventBuffer:       256,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Log: LogConfig{
			Level: "info",
		},
		Evaluator: EvaluatorConfig{
			Provider: "none",
		},
		Policy: policy.Default(),
	}
}

// FromViper builds a validated configuration starting from defaults, so a
// partial config file works
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend and policy settings
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Evaluator.Provider {
	case "", "none", "openai":
	default:
		return fmt.Errorf("unknown evaluator provider %q", c.Evaluator.Provider)
	}
	if c.Server.VoteRatePerSecond <= 0 {
		return fmt.Errorf("server.vote_rate_per_second must be positive, got %v", c.Server.VoteRatePerSecond)
	}
	return c.Policy.Validate()
}

// BuildLogger constructs the zap logger described by the log section
func (c Config) BuildLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.Log.Level, err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
