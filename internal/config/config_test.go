package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "test-token")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DiscordToken != "test-token" {
		t.Errorf("DiscordToken = %q, want %q", cfg.DiscordToken, "test-token")
	}
	if cfg.DatabasePath != "./data/bot.db" {
		t.Errorf("DatabasePath = %q, want default", cfg.DatabasePath)
	}
	if cfg.CatalogTTL != 6*time.Hour {
		t.Errorf("CatalogTTL = %s, want 6h", cfg.CatalogTTL)
	}
	if cfg.ShopPostTime != "00:05" {
		t.Errorf("ShopPostTime = %q, want 00:05", cfg.ShopPostTime)
	}
	if cfg.EnrichmentEnabled() {
		t.Error("enrichment enabled without FNBR_API_KEY")
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DISCORD_TOKEN is empty")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad post time", "SHOP_POST_TIME", "25:99", "SHOP_POST_TIME"},
		{"post time missing minutes", "SHOP_POST_TIME", "9", "SHOP_POST_TIME"},
		{"stale age below ttl", "MAX_STALE_AGE", "1h", "MAX_STALE_AGE"},
		{"zero sessions", "MAX_SESSIONS", "0", "MAX_SESSIONS"},
		{"bad duration", "CATALOG_TTL", "six hours", "parse env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnrichmentEnabled(t *testing.T) {
	setRequired(t)
	t.Setenv("FNBR_API_KEY", "abc123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.EnrichmentEnabled() {
		t.Error("enrichment disabled with FNBR_API_KEY set")
	}
}
