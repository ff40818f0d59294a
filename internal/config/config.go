// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	DiscordToken   string `env:"DISCORD_TOKEN,required,notEmpty"`
	OperatorUserID string `env:"OPERATOR_USER_ID"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/bot.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr  string `env:"METRICS_ADDR"` // empty disables the /metrics listener

	ShopAPIURL string `env:"SHOP_API_URL" envDefault:"https://fortnite-api.com/v2"`
	FNBRAPIURL string `env:"FNBR_API_URL" envDefault:"https://fnbr.co/api"`
	FNBRAPIKey string `env:"FNBR_API_KEY"` // empty disables enrichment

	CatalogTTL     time.Duration `env:"CATALOG_TTL" envDefault:"6h"`
	MaxStaleAge    time.Duration `env:"MAX_STALE_AGE" envDefault:"24h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	FetchRetries   uint          `env:"FETCH_RETRIES" envDefault:"3"`

	ShopPostTime string `env:"SHOP_POST_TIME" envDefault:"00:05"` // HH:MM, UTC

	MaxSessions int `env:"MAX_SESSIONS" envDefault:"100"`
}

var postTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if !postTimeRe.MatchString(cfg.ShopPostTime) {
		return nil, fmt.Errorf("SHOP_POST_TIME %q is not HH:MM", cfg.ShopPostTime)
	}
	if cfg.MaxStaleAge < cfg.CatalogTTL {
		return nil, fmt.Errorf("MAX_STALE_AGE (%s) must not be below CATALOG_TTL (%s)", cfg.MaxStaleAge, cfg.CatalogTTL)
	}
	if cfg.MaxSessions < 1 {
		return nil, fmt.Errorf("MAX_SESSIONS must be positive, got %d", cfg.MaxSessions)
	}

	return &cfg, nil
}

// EnrichmentEnabled reports whether the fnbr.co enrichment provider is configured.
func (c *Config) EnrichmentEnabled() bool {
	return c.FNBRAPIKey != ""
}
