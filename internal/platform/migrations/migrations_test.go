package migrations

import (
	"database/sql"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	_ "github.com/lib/pq"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := Source()
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	var versions []uint
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		if err != nil {
			t.Fatalf("read up %d: %v", version, err)
		}
		body, _ := io.ReadAll(up)
		up.Close()
		if !strings.Contains(string(body), "CREATE TABLE") {
			t.Fatalf("migration %d does not create a table", version)
		}

		down, _, err := src.ReadDown(version)
		if err != nil {
			t.Fatalf("read down %d: %v", version, err)
		}
		down.Close()

		next, err := src.Next(version)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatalf("next after %d: %v", version, err)
		}
		version = next
	}

	if len(versions) != 3 {
		t.Fatalf("expected 3 migrations, got %v", versions)
	}
}

func TestUpIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := Up(db); err != nil {
		t.Fatalf("first up: %v", err)
	}
	if err := Up(db); err != nil {
		t.Fatalf("second up should be a no-op: %v", err)
	}
}
