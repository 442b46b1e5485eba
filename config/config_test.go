package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"watchverse/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WATCHVERSE_CATALOG_API_KEY", "test-key")
	t.Setenv("WATCHVERSE_AUTH_SECRET", "test-secret")
}

func TestLoadUsesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected an error for a missing explicit config file")
	}

	cfg, err = config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("unexpected default listen addr %q", cfg.Server.ListenAddr)
	}
	if cfg.Catalog.CacheTTL != time.Hour {
		t.Fatalf("unexpected default cache ttl %v", cfg.Catalog.CacheTTL)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  listen_addr: \":9090\"\ncatalog:\n  cache_size: 64\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Fatalf("expected the file listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Catalog.CacheSize != 64 {
		t.Fatalf("expected the file cache size, got %d", cfg.Catalog.CacheSize)
	}
	// Keys the file does not set keep their defaults.
	if cfg.Database.Path == "" {
		t.Fatalf("expected a default database path")
	}
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WATCHVERSE_SERVER_LISTEN_ADDR", ":7070")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_addr: \":9090\"\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.ListenAddr != ":7070" {
		t.Fatalf("expected the environment listen addr, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Catalog.APIKey != "test-key" {
		t.Fatalf("expected the environment api key, got %q", cfg.Catalog.APIKey)
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv("WATCHVERSE_CATALOG_API_KEY", "")
	t.Setenv("WATCHVERSE_AUTH_SECRET", "")

	if _, err := config.Load(""); err == nil {
		t.Fatalf("expected an error without the required secrets")
	}
}
