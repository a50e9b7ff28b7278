// Package config loads the application configuration: YAML over struct
// defaults, validated before anything touches it. The loaded Config is
// treated as immutable for the life of the process.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quanthive/quanthive/internal/optimize"
)

// Duration decodes YAML scalars in Go duration syntax, e.g. "30s" or "336h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library value.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DatabaseConfig points at the bars/ledger PostgreSQL instance.
type DatabaseConfig struct {
	DSN             string   `yaml:"dsn" default:"postgres://localhost:5432/quanthive?sslmode=disable" validate:"required"`
	QueryTimeout    Duration `yaml:"query_timeout" validate:"gt=0"`
	BreakerCooldown Duration `yaml:"breaker_cooldown" validate:"gt=0"`
}

// SetDefaults fills the duration fields the tag mechanism cannot express.
func (c *DatabaseConfig) SetDefaults() {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = Duration(10 * time.Second)
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = Duration(30 * time.Second)
	}
}

// RedisConfig controls the optional bar cache.
type RedisConfig struct {
	Enabled bool     `yaml:"enabled" default:"false"`
	Addr    string   `yaml:"addr" default:"localhost:6379"`
	TTL     Duration `yaml:"ttl" validate:"gt=0"`
}

func (c *RedisConfig) SetDefaults() {
	if c.TTL == 0 {
		c.TTL = Duration(time.Hour)
	}
}

// TelemetryConfig controls the metrics endpoint.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" default:"false"`
	Addr    string `yaml:"addr" default:":9184"`
}

// Config is the application root configuration.
type Config struct {
	Symbol       string   `yaml:"symbol" default:"BTC-USD" validate:"required"`
	ArtifactsDir string   `yaml:"artifacts_dir" default:"artifacts" validate:"required"`
	Validity     Duration `yaml:"validity" validate:"gt=0"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Optimizer optimize.Config `yaml:"optimizer"`
}

// SetDefaults gives persisted models a two-week validity window by default.
func (c *Config) SetDefaults() {
	if c.Validity == 0 {
		c.Validity = Duration(14 * 24 * time.Hour)
	}
}

// defaultCandidateFeatures is the feature set offered to selection when the
// config does not name its own.
func defaultCandidateFeatures() []string {
	return []string{
		"atr", "rsi_14", "mom_5", "mom_20", "volatility_20",
		"volume_ratio", "ema_spread", "bb_width", "macd_hist",
		"obv_slope", "high_low_range", "close_position",
	}
}

// Load reads path (optional: empty means defaults only), overlays it on the
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	cfg.SetDefaults()
	cfg.Database.SetDefaults()
	cfg.Redis.SetDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if len(cfg.Optimizer.CandidateFeatures) == 0 {
		cfg.Optimizer.CandidateFeatures = defaultCandidateFeatures()
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
