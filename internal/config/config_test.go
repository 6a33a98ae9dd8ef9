package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseDir != "uploads" {
		t.Fatalf("expected default base dir, got %q", cfg.BaseDir)
	}
	if cfg.StagingMaxAge != time.Hour {
		t.Fatalf("expected default max age, got %v", cfg.StagingMaxAge)
	}
	if len(cfg.IndoorTypes) != len(defaultIndoorTypes) {
		t.Fatalf("expected default indoor types, got %v", cfg.IndoorTypes)
	}
	if cfg.IndoorTypes[0] != "Weight Training" {
		t.Fatalf("unexpected first indoor type %q", cfg.IndoorTypes[0])
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ACTIVITY_BASE_DIR", "/srv/activities")
	t.Setenv("STAGING_DIR", "/tmp/staging")
	t.Setenv("INDOOR_ACTIVITY_TYPES", "Weight Training, Treadmill ,")
	t.Setenv("STAGING_MAX_AGE", "15m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseDir != "/srv/activities" {
		t.Fatalf("expected override base dir, got %q", cfg.BaseDir)
	}
	if cfg.StagingDir != "/tmp/staging" {
		t.Fatalf("expected override staging dir, got %q", cfg.StagingDir)
	}
	if len(cfg.IndoorTypes) != 2 || cfg.IndoorTypes[1] != "Treadmill" {
		t.Fatalf("expected trimmed indoor types, got %q", cfg.IndoorTypes)
	}
	if cfg.StagingMaxAge != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", cfg.StagingMaxAge)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("EXPORT_DIR=/var/exports\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("EXPORT_DIR") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ExportDir != "/var/exports" {
		t.Fatalf("expected value from env file, got %q", cfg.ExportDir)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	cfg.StagingDir = " "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty staging dir")
	}
}

func TestValidateStagingMaxAge(t *testing.T) {
	for _, age := range []time.Duration{0, -time.Minute} {
		cfg := Default()
		cfg.StagingMaxAge = age
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for max age %s", age)
		}
	}

	t.Setenv("STAGING_MAX_AGE", "0s")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected STAGING_MAX_AGE=0s to be rejected")
	}
}
