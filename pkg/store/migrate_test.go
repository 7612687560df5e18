package store

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}
	for {
		up, _, err := src.ReadUp(version)
		if err != nil {
			t.Fatalf("read up %d: %v", version, err)
		}
		body, _ := io.ReadAll(up)
		up.Close()
		if strings.TrimSpace(string(body)) == "" {
			t.Fatalf("migration %d up is empty", version)
		}
		down, _, err := src.ReadDown(version)
		if err != nil {
			t.Fatalf("migration %d has no down file: %v", version, err)
		}
		down.Close()

		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}
}

func TestInitMigrationDeclaresSearchIndexes(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	sql := string(body)
	for _, want := range []string{
		"shortlists_user_vendor_key UNIQUE (user_id, vendor_id)",
		"USING GIN (dietary_options)",
		"conversations_active_pair_idx",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("init migration missing %q", want)
		}
	}
}
