// Package config loads and validates the engine configuration from
// ~/.recall/config.yaml, with defaults that work without any file present.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/basket/recall/internal/otelx"
	"github.com/basket/recall/internal/tokens"
)

// MemoryConfig sizes the conversation window.
type MemoryConfig struct {
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	ReserveTokens int    `yaml:"reserve_tokens"`
}

// StoreConfig tunes the content store and its retention.
type StoreConfig struct {
	Path                 string `yaml:"path"`
	ThresholdBytes       int    `yaml:"threshold_bytes"`
	PreviewChars         int    `yaml:"preview_chars"`
	RetentionSchedule    string `yaml:"retention_schedule"`
	RetentionMaxAgeHours int    `yaml:"retention_max_age_hours"`
}

// TelemetryConfig controls logging.
type TelemetryConfig struct {
	Level string `yaml:"level"`
	Quiet bool   `yaml:"quiet"`
}

// Config is the full engine configuration.
type Config struct {
	Memory    MemoryConfig    `yaml:"memory"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Otel      otelx.Config    `yaml:"otel"`

	homeDir string
}

// DefaultHomeDir returns the data directory, honoring RECALL_HOME.
func DefaultHomeDir() string {
	if dir := os.Getenv("RECALL_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".recall"
	}
	return filepath.Join(home, ".recall")
}

// Default returns the configuration used when no config file exists.
func Default(homeDir string) *Config {
	return &Config{
		Memory: MemoryConfig{
			Model:         "claude-3-5-sonnet-20241022",
			MaxTokens:     8000,
			ReserveTokens: 2000,
		},
		Store: StoreConfig{
			Path:                 filepath.Join(homeDir, "content.db"),
			ThresholdBytes:       1024,
			PreviewChars:         120,
			RetentionSchedule:    "@hourly",
			RetentionMaxAgeHours: 7 * 24,
		},
		Telemetry: TelemetryConfig{Level: "info"},
		homeDir:   homeDir,
	}
}

// Load reads config.yaml under homeDir, applying defaults for missing
// fields. A missing file is not an error.
func Load(homeDir string) (*Config, error) {
	cfg := Default(homeDir)
	path := filepath.Join(homeDir, "config.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.homeDir = homeDir
	cfg.applyDefaults(homeDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(homeDir string) {
	d := Default(homeDir)
	if c.Memory.Model == "" {
		c.Memory.Model = d.Memory.Model
	}
	if c.Memory.MaxTokens <= 0 {
		c.Memory.MaxTokens = d.Memory.MaxTokens
	}
	if c.Memory.ReserveTokens < 0 {
		c.Memory.ReserveTokens = d.Memory.ReserveTokens
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Store.ThresholdBytes <= 0 {
		c.Store.ThresholdBytes = d.Store.ThresholdBytes
	}
	if c.Store.PreviewChars <= 0 {
		c.Store.PreviewChars = d.Store.PreviewChars
	}
	if c.Store.RetentionSchedule == "" {
		c.Store.RetentionSchedule = d.Store.RetentionSchedule
	}
	if c.Store.RetentionMaxAgeHours <= 0 {
		c.Store.RetentionMaxAgeHours = d.Store.RetentionMaxAgeHours
	}
	if c.Telemetry.Level == "" {
		c.Telemetry.Level = d.Telemetry.Level
	}
}

// Validate rejects configurations the engine would refuse at runtime.
// Window limits are checked at load so a bad file fails here, not on the
// first conversation turn.
func (c *Config) Validate() error {
	if c.Memory.ReserveTokens >= c.Memory.MaxTokens {
		return fmt.Errorf("memory.reserve_tokens (%d) must be less than memory.max_tokens (%d)",
			c.Memory.ReserveTokens, c.Memory.MaxTokens)
	}
	if limit := tokens.ContextLimit(c.Memory.Model); c.Memory.MaxTokens > limit {
		return fmt.Errorf("memory.max_tokens (%d) exceeds the %s context window (%d)",
			c.Memory.MaxTokens, c.Memory.Model, limit)
	}
	return nil
}

// HomeDir returns the data directory this config was loaded from.
func (c *Config) HomeDir() string {
	return c.homeDir
}

// Save writes the config back to config.yaml under its home directory.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(c.homeDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(c.homeDir, "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
