package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != DefaultBaseURL {
		t.Fatalf("base url = %q", cfg.API.BaseURL)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("api:\n  base_url: http://localhost:4000/api/\n  timeout: 3s\ntimezone: Europe/Berlin\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:4000/api" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.API.Timeout)
	}
	if cfg.API.AuthScheme != "Bearer" {
		t.Fatalf("auth scheme default = %q", cfg.API.AuthScheme)
	}
	if cfg.Listen != DefaultListen || cfg.RefreshCron != DefaultRefreshCron {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.Categories) == 0 {
		t.Fatal("categories default missing")
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone = %s", cfg.Timezone)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("EVENTHUB_LISTEN=127.0.0.1:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvListen, "")
	os.Unsetenv(EnvListen)
	t.Setenv(EnvAPIURL, "http://api.test/api")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.API.BaseURL != "http://api.test/api" {
		t.Fatalf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Fatalf("listen from .env = %q", cfg.Listen)
	}
}

func TestApplyEnvMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.API.AuthScheme = AuthSchemeNone
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "u" {
		t.Fatalf("basic auth lost: %+v", got.BasicAuth)
	}
	if got.API.AuthScheme != AuthSchemeNone {
		t.Fatalf("auth scheme = %q", got.API.AuthScheme)
	}
}
