package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iho/ledgerbook/internal/infrastructure/config"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.SyncMaxPasses != 2 || cfg.FXConversionPolicy != "best_effort" {
		t.Fatalf("unexpected sync defaults: passes=%d policy=%s", cfg.SyncMaxPasses, cfg.FXConversionPolicy)
	}

	m, err := cfg.SpikeMultiplier()
	if err != nil || m.String() != "3" {
		t.Fatalf("expected spike multiplier 3, got %s (%v)", m, err)
	}
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("SYNC_SPIKE_MULTIPLIER", "2.5")
	t.Setenv("FX_CONVERSION_POLICY", "strict")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if m, _ := cfg.SpikeMultiplier(); m.String() != "2.5" || cfg.FXConversionPolicy != "strict" {
		t.Fatalf("expected sync overrides, got multiplier=%s policy=%s", m, cfg.FXConversionPolicy)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SYNC_MAX_PASSES=4\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("SYNC_MAX_PASSES", "")
	os.Unsetenv("SYNC_MAX_PASSES")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.SyncMaxPasses != 4 || cfg.LogLevel != "debug" {
		t.Fatalf("expected values from the env file, got passes=%d level=%s", cfg.SyncMaxPasses, cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "HTTP_READ_TIMEOUT", value: "not-a-duration"},
		{name: "zero passes", key: "SYNC_MAX_PASSES", value: "0"},
		{name: "negative multiplier", key: "SYNC_SPIKE_MULTIPLIER", value: "-1"},
		{name: "non-numeric multiplier", key: "SYNC_SPIKE_MULTIPLIER", value: "lots"},
		{name: "unknown policy", key: "FX_CONVERSION_POLICY", value: "guess"},
		{name: "no workers", key: "SYNC_WORKERS", value: "0"},
		{name: "unknown lock backend", key: "SYNC_LOCK_BACKEND", value: "zookeeper"},
		{name: "unknown event sink", key: "EVENT_SINK", value: "kafka"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			if _, err := config.Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
