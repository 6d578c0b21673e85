package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8645" || cfg.Backend != BackendLevelDB {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.RateLimitPerSecond != 10 || cfg.RateLimitBurst != 20 {
		t.Fatalf("unexpected rate limit defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	// Loading the written file round-trips the defaults.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "Backend = \"bolt\"\nRateLimitBurst = 5\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendBolt || cfg.RateLimitBurst != 5 {
		t.Fatalf("file values not applied %+v", cfg)
	}
	if cfg.ListenAddress != ":8645" || cfg.DataDir == "" {
		t.Fatalf("defaults not filled %+v", cfg)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("Backend = \"redis\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected backend rejection")
	}
}
