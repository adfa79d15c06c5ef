// Package config defines all configuration for the pawaRisk pipeline.
// Static config is loaded from a YAML file (default: configs/config.yaml)
// with sensitive fields overridable via PAWARISK_* environment variables.
// Runtime knobs (intervals, concurrency, alert thresholds) live in the
// settings table and are loaded separately — see Settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration. Maps directly to the YAML file.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds the Postgres connection settings for the durable store.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxConns     int    `mapstructure:"max_conns"`
	WriteWorkers int    `mapstructure:"write_workers"`
	QueueSize    int    `mapstructure:"queue_size"`
}

// PlatformConfig holds one bookmaker's API endpoint and transport tuning.
type PlatformConfig struct {
	BaseURL   string            `mapstructure:"base_url"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Retries   int               `mapstructure:"retries"`
	UserAgent string            `mapstructure:"user_agent"`
	Headers   map[string]string `mapstructure:"headers"`
}

// PlatformsConfig groups the three bookmaker endpoints.
type PlatformsConfig struct {
	BetPawa   PlatformConfig `mapstructure:"betpawa"`
	SportyBet PlatformConfig `mapstructure:"sportybet"`
	Bet9ja    PlatformConfig `mapstructure:"bet9ja"`
}

// ScrapeConfig tunes the coordinator independently of the settings row.
//
//   - EventDeadline: total budget for one event across all its platforms.
//   - EventConcurrency: events processed in parallel inside a batch.
//   - WatchdogInterval: how often the stale-run watchdog ticks.
type ScrapeConfig struct {
	EventDeadline    time.Duration `mapstructure:"event_deadline"`
	EventConcurrency int           `mapstructure:"event_concurrency"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
}

// APIConfig controls the read API / WebSocket server.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// The DSN can be supplied via PAWARISK_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PAWARISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.write_workers", 1)
	v.SetDefault("database.queue_size", 64)
	v.SetDefault("scrape.event_deadline", 30*time.Second)
	v.SetDefault("scrape.event_concurrency", 10)
	v.SetDefault("scrape.watchdog_interval", 2*time.Minute)
	v.SetDefault("api.port", 8090)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dsn := os.Getenv("PAWARISK_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (set PAWARISK_DATABASE_DSN)")
	}
	if c.Platforms.BetPawa.BaseURL == "" {
		return fmt.Errorf("platforms.betpawa.base_url is required")
	}
	if c.Platforms.SportyBet.BaseURL == "" {
		return fmt.Errorf("platforms.sportybet.base_url is required")
	}
	if c.Platforms.Bet9ja.BaseURL == "" {
		return fmt.Errorf("platforms.bet9ja.base_url is required")
	}
	if c.Scrape.EventConcurrency <= 0 {
		return fmt.Errorf("scrape.event_concurrency must be > 0")
	}
	if c.Database.QueueSize <= 0 {
		return fmt.Errorf("database.queue_size must be > 0")
	}
	return nil
}
