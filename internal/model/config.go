package model

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// APIConfig holds the settings for the console's notification API.
type APIConfig struct {
	// BaseURL is the root URL of the console backend.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// FetchTimeoutSec bounds a single notification fetch.
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec" validate:"gte=1"`
}

// SyncConfig controls the cadence of server reconciliation.
type SyncConfig struct {
	PollIntervalSec    int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec" validate:"gte=1"`
	ReconcileDelayMs   int `mapstructure:"reconcile_delay_ms" yaml:"reconcile_delay_ms" validate:"gte=0"`
	CleanupIntervalSec int `mapstructure:"cleanup_interval_sec" yaml:"cleanup_interval_sec" validate:"gte=1"`
}

// RetentionConfig holds the dedup window and expiry limits.
type RetentionConfig struct {
	DedupWindowSec      int `mapstructure:"dedup_window_sec" yaml:"dedup_window_sec" validate:"gte=0"`
	MaxAgeHours         int `mapstructure:"max_age_hours" yaml:"max_age_hours" validate:"gte=1"`
	ActionMaxAgeHours   int `mapstructure:"action_max_age_hours" yaml:"action_max_age_hours" validate:"gte=1"`
	PartitionMaxAgeDays int `mapstructure:"partition_max_age_days" yaml:"partition_max_age_days" validate:"gte=1"`
}

// DurableConfig selects and configures the long-lived storage partition.
type DurableConfig struct {
	// Backend is "sqlite" or "redis".
	Backend    string `mapstructure:"backend" yaml:"backend" validate:"oneof=sqlite redis"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB    int    `mapstructure:"redis_db" yaml:"redis_db" validate:"gte=0"`
}

// SessionConfig locates the per-session storage partition.
type SessionConfig struct {
	// Dir is where session snapshots are written. Empty means
	// $XDG_RUNTIME_DIR, falling back to the OS temp directory.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// ID names the current terminal session. Empty means the parent
	// process id, so restarting the client from the same shell counts
	// as a reload.
	ID string `mapstructure:"id" yaml:"id"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Role          string          `mapstructure:"role" yaml:"role"`
	API           APIConfig       `mapstructure:"api" yaml:"api"`
	Sync          SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Retention     RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Durable       DurableConfig   `mapstructure:"durable" yaml:"durable"`
	Session       SessionConfig   `mapstructure:"session" yaml:"session"`
	StalePatterns []string        `mapstructure:"stale_patterns" yaml:"stale_patterns"`
	LogFile       string          `mapstructure:"log_file" yaml:"log_file"`
	LogLevel      string          `mapstructure:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error"`
}

// Roles lists the role contexts the console knows about.
var Roles = []string{"coordinator", "admin"}

// DefaultConfigDir returns ~/.config/subsidy-console.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "subsidy-console")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/subsidy-console/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:         "http://localhost:8080",
			FetchTimeoutSec: 30,
		},
		Sync: SyncConfig{
			PollIntervalSec:    120,
			ReconcileDelayMs:   2000,
			CleanupIntervalSec: 3600,
		},
		Retention: RetentionConfig{
			DedupWindowSec:      60,
			MaxAgeHours:         7 * 24,
			ActionMaxAgeHours:   24,
			PartitionMaxAgeDays: 30,
		},
		Durable: DurableConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(dir, "notifications.db"),
			RedisAddr:  "localhost:6379",
		},
		StalePatterns: []string{
			`(?i)sample (farmer|beneficiary)`,
			`(?i)lorem ipsum`,
		},
		LogFile:  filepath.Join(dir, "subsidy-notify.log"),
		LogLevel: "info",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.fetch_timeout_sec", def.API.FetchTimeoutSec)
	v.SetDefault("sync.poll_interval_sec", def.Sync.PollIntervalSec)
	v.SetDefault("sync.reconcile_delay_ms", def.Sync.ReconcileDelayMs)
	v.SetDefault("sync.cleanup_interval_sec", def.Sync.CleanupIntervalSec)
	v.SetDefault("retention.dedup_window_sec", def.Retention.DedupWindowSec)
	v.SetDefault("retention.max_age_hours", def.Retention.MaxAgeHours)
	v.SetDefault("retention.action_max_age_hours", def.Retention.ActionMaxAgeHours)
	v.SetDefault("retention.partition_max_age_days", def.Retention.PartitionMaxAgeDays)
	v.SetDefault("durable.backend", def.Durable.Backend)
	v.SetDefault("durable.sqlite_path", def.Durable.SQLitePath)
	v.SetDefault("durable.redis_addr", def.Durable.RedisAddr)
	v.SetDefault("log_file", def.LogFile)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("role", cfg.Role)
	v.Set("api", cfg.API)
	v.Set("sync", cfg.Sync)
	v.Set("retention", cfg.Retention)
	v.Set("durable", cfg.Durable)
	v.Set("session", cfg.Session)
	v.Set("stale_patterns", cfg.StalePatterns)
	v.Set("log_file", cfg.LogFile)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

var validate = validator.New()

// Validate checks field constraints and that every stale pattern compiles.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.CompiledStalePatterns(); err != nil {
		return err
	}
	return nil
}

// CompiledStalePatterns compiles StalePatterns.
func (c *AppConfig) CompiledStalePatterns() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(c.StalePatterns))
	for _, p := range c.StalePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling stale pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// PollInterval returns the periodic fetch interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalSec) * time.Second
}

// ReconcileDelay returns how long to wait after a local add before fetching.
func (c *AppConfig) ReconcileDelay() time.Duration {
	return time.Duration(c.Sync.ReconcileDelayMs) * time.Millisecond
}

// CleanupInterval returns how often the expiry pass runs.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Sync.CleanupIntervalSec) * time.Second
}

// FetchTimeout returns the upper bound for one fetch.
func (c *AppConfig) FetchTimeout() time.Duration {
	return time.Duration(c.API.FetchTimeoutSec) * time.Second
}

// DedupWindow returns the duplicate suppression window.
func (c *AppConfig) DedupWindow() time.Duration {
	return time.Duration(c.Retention.DedupWindowSec) * time.Second
}

// MaxAge returns the expiry age for ordinary notifications.
func (c *AppConfig) MaxAge() time.Duration {
	return time.Duration(c.Retention.MaxAgeHours) * time.Hour
}

// ActionMaxAge returns the expiry age for action notifications.
func (c *AppConfig) ActionMaxAge() time.Duration {
	return time.Duration(c.Retention.ActionMaxAgeHours) * time.Hour
}

// PartitionMaxAge returns how long an untouched durable partition is kept.
func (c *AppConfig) PartitionMaxAge() time.Duration {
	return time.Duration(c.Retention.PartitionMaxAgeDays) * 24 * time.Hour
}
