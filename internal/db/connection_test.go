package db

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigURLs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "p@ss word"

	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "postgres://postgres:") {
		t.Fatalf("unexpected dsn prefix: %s", dsn)
	}
	if !strings.Contains(dsn, "@localhost:5432/entity_history?sslmode=disable") {
		t.Fatalf("unexpected dsn host/path: %s", dsn)
	}
	if strings.Contains(dsn, "p@ss word") {
		t.Fatalf("password must be escaped: %s", dsn)
	}

	if got := cfg.MigrationURL(); !strings.HasPrefix(got, "pgx5://") {
		t.Fatalf("expected pgx5 scheme for migrations, got %s", got)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	var up, down int
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Fatalf("expected matching up/down migrations, got %d up and %d down", up, down)
	}
}

func TestRollbackErrorKeepsCause(t *testing.T) {
	errMissing := errors.New("entity not found")

	if got := rollbackError(errMissing, nil); got != errMissing {
		t.Fatalf("expected cause unchanged without rollback failure, got %v", got)
	}

	got := rollbackError(errMissing, errors.New("conn closed"))
	if !errors.Is(got, errMissing) {
		t.Fatalf("expected cause to stay unwrappable, got %v", got)
	}
	if !strings.Contains(got.Error(), "conn closed") {
		t.Fatalf("expected rollback failure in message, got %v", got)
	}
}
