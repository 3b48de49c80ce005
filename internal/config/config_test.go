package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_DRIVER", "SNAPSHOT_INTERVAL_MINUTES", "RECALC_BATCH_SIZE", "ALLOWED_ORIGINS", "AUTO_MIGRATE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("unexpected driver: %s", cfg.DatabaseDriver)
	}
	if cfg.SnapshotInterval != 24*time.Hour {
		t.Fatalf("unexpected snapshot interval: %s", cfg.SnapshotInterval)
	}
	if cfg.RecalcBatchSize != 100 {
		t.Fatalf("unexpected batch size: %d", cfg.RecalcBatchSize)
	}
	if cfg.AutoMigrate {
		t.Fatal("auto migrate must be opt-in")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("SNAPSHOT_INTERVAL_MINUTES", "0")
	t.Setenv("RECALC_BATCH_SIZE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUTO_MIGRATE", "true")
	cfg := Load()
	if !cfg.AutoMigrate {
		t.Fatal("expected auto migrate")
	}
	if cfg.DatabaseDriver != "sqlite3" {
		t.Fatalf("unexpected driver: %s", cfg.DatabaseDriver)
	}
	if cfg.SnapshotInterval != 0 {
		t.Fatalf("expected disabled scheduler, got %s", cfg.SnapshotInterval)
	}
	if cfg.RecalcBatchSize != 100 {
		t.Fatalf("invalid values fall back, got %d", cfg.RecalcBatchSize)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %#v", cfg.AllowedOrigins)
	}
}
