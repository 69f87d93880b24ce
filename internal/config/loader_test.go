package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache must be disabled by default")
	}
	if len(cfg.History.IgnoredFields) != 0 {
		t.Fatalf("expected no extra ignored fields, got %v", cfg.History.IgnoredFields)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `database:
  host: db.internal
  dbname: receivables
server:
  addr: ":9090"
  allowed_origins:
    - https://app.example.com
cache:
  enabled: true
  ttl: 30s
history:
  ignored_fields:
    - sourceHash
    - syncedAt
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("ENGHISTORY_DATABASE_PORT", "6543")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.DBName != "receivables" {
		t.Fatalf("file values not applied: %+v", cfg.Database)
	}
	if cfg.Database.Port != 6543 {
		t.Fatalf("env override not applied, port = %d", cfg.Database.Port)
	}
	if cfg.Server.Addr != ":9090" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 30*time.Second {
		t.Fatalf("unexpected cache config: %+v", cfg.Cache)
	}
	if len(cfg.History.IgnoredFields) != 2 || cfg.History.IgnoredFields[0] != "sourceHash" {
		t.Fatalf("unexpected ignored fields: %v", cfg.History.IgnoredFields)
	}
	if UsedFile(dir) == "" {
		t.Fatalf("expected config file to be reported")
	}
}

func TestLoadCommaSeparatedListsFromEnv(t *testing.T) {
	t.Setenv("ENGHISTORY_HISTORY_IGNORED_FIELDS", "syncedAt, etag")
	t.Setenv("ENGHISTORY_SERVER_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com,")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.History.IgnoredFields) != 2 || cfg.History.IgnoredFields[0] != "syncedAt" || cfg.History.IgnoredFields[1] != "etag" {
		t.Fatalf("unexpected ignored fields: %q", cfg.History.IgnoredFields)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected allowed origins: %q", cfg.Server.AllowedOrigins)
	}
}
