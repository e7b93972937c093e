package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSQLite_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	if err := s.Put(ctx, "liked:u:7:a:b", []byte(`{"state":"liked"}`)); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}
	s.Close()

	for i := 0; i < 3; i++ {
		s, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("OpenSQLite() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("final OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	_, ok, err := s.Get(ctx, "liked:u:7:a:b")
	if err != nil || !ok {
		t.Fatalf("row lost across reopen: ok=%v err=%v", ok, err)
	}
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/favorites.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestSQLite_CloseNilDB(t *testing.T) {
	s := &SQLite{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragma_JournalMode(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "favorites.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "favorites.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "favorites.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "favorites.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "favorites.db")

	// A version 0 database has no updated_at column.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE favorites (key TEXT PRIMARY KEY COLLATE BINARY, value TEXT NOT NULL) WITHOUT ROWID`); err != nil {
		t.Fatalf("failed to create v0 table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO favorites (key, value) VALUES ('liked:u:7:a:b', '1')`); err != nil {
		t.Fatalf("failed to seed v0 row: %v", err)
	}
	db.Close()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()

	has, err := hasColumn(s.db, "favorites", "updated_at")
	if err != nil {
		t.Fatalf("hasColumn() failed: %v", err)
	}
	if !has {
		t.Error("updated_at column missing after migration")
	}

	value, ok, err := s.Get(context.Background(), "liked:u:7:a:b")
	if err != nil || !ok {
		t.Fatalf("v0 row lost: ok=%v err=%v", ok, err)
	}
	if string(value) != "1" {
		t.Errorf("value = %q, want %q", value, "1")
	}
}

func TestSQLite_ScanUsesByteOrder(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for _, k := range []string{"liked:u:0:잡채:", "liked:u:0:Z:", "liked:u:0:a:", "liked:v:0:a:"} {
		if err := s.Put(ctx, k, []byte("1")); err != nil {
			t.Fatalf("Put(%q) failed: %v", k, err)
		}
	}

	entries, err := s.Scan(ctx, "liked:u:")
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	want := []string{"liked:u:0:Z:", "liked:u:0:a:", "liked:u:0:잡채:"}
	if len(entries) != len(want) {
		t.Fatalf("Scan() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Key != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.Key, want[i])
		}
	}
}
