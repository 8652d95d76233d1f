package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
currency:
  display_currency: NGN
  rate: 150.5
bot_gateway:
  secret: super-secret
notifications:
  activity_feed: false
cache:
  item_ttl: 20m
cleanup:
  initiation_token_ttl: 48h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Currency.DisplayCurrency != "NGN" {
		t.Fatalf("unexpected display currency: %s", cfg.Currency.DisplayCurrency)
	}
	if cfg.Currency.Rate != 150.5 {
		t.Fatalf("unexpected currency rate: %f", cfg.Currency.Rate)
	}
	if cfg.BotGateway.Secret != "super-secret" {
		t.Fatalf("unexpected bot gateway secret: %s", cfg.BotGateway.Secret)
	}
	if cfg.Notifications.ActivityFeed {
		t.Fatalf("activity feed toggle should be overridden to false")
	}
	if cfg.Cache.ItemTTL.String() != "20m0s" {
		t.Fatalf("unexpected cache item ttl: %s", cfg.Cache.ItemTTL)
	}
	if cfg.Cleanup.InitiationTokenTTL.String() != "48h0m0s" {
		t.Fatalf("unexpected initiation token ttl: %s", cfg.Cleanup.InitiationTokenTTL)
	}

	if !cfg.Notifications.PurchaseUpdates {
		t.Fatalf("purchase updates toggle default should stay true")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http addr default should stay :8080, got %s", cfg.HTTP.Addr)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("POSTGRES_DSN", "postgres://env:env@db:5432/env")
	t.Setenv("BOT_GATEWAY_SECRET", "env-secret")
	t.Setenv("CURRENCY_RATE", "95")
	t.Setenv("NOTIFY_PROGRESS_SYNC", "false")
	t.Setenv("ADMIN_NOTIFY_CHAT_ID", "-100200300")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Postgres.DSN != "postgres://env:env@db:5432/env" {
		t.Fatalf("unexpected postgres dsn: %s", cfg.Postgres.DSN)
	}
	if cfg.BotGateway.Secret != "env-secret" {
		t.Fatalf("unexpected bot gateway secret: %s", cfg.BotGateway.Secret)
	}
	if cfg.Currency.Rate != 95 {
		t.Fatalf("unexpected currency rate: %f", cfg.Currency.Rate)
	}
	if cfg.Notifications.ProgressSync {
		t.Fatalf("progress sync toggle should be overridden to false")
	}
	if cfg.AdminNotify.ChatID != -100200300 {
		t.Fatalf("unexpected admin chat id: %d", cfg.AdminNotify.ChatID)
	}
}

func TestLoadRejectsBadEnvValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CURRENCY_RATE", "not-a-number")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid CURRENCY_RATE")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV", "HTTP_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT", "LOG_LEVEL", "POSTGRES_DSN", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "S3_ENDPOINT", "S3_ACCESS_KEY",
		"S3_SECRET_KEY", "S3_BUCKET", "S3_USE_SSL", "JWT_SECRET",
		"JWT_ACCESS_TTL", "BOT_GATEWAY_SECRET", "CURRENCY_DISPLAY",
		"CURRENCY_RATE", "NOTIFY_PURCHASE_UPDATES", "NOTIFY_ADMIN_APPROVALS",
		"NOTIFY_PROGRESS_SYNC", "NOTIFY_ACTIVITY_FEED", "CACHE_ITEM_TTL",
		"CACHE_LIST_TTL", "CACHE_SWEEP_INTERVAL", "ADMIN_NOTIFY_BOT_TOKEN",
		"ADMIN_NOTIFY_CHAT_ID", "CLEANUP_INTERVAL", "INITIATION_TOKEN_TTL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}
