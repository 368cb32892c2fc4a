package db

import (
	"path/filepath"
	"testing"
)

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	for _, table := range []string{"runs", "memory_items", "tool_cache"} {
		var n int
		err := database.Conn().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&n)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}

	var n int
	if err := database.Conn().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE name = 'memory_fts'`,
	).Scan(&n); err != nil {
		t.Fatalf("query memory_fts: %v", err)
	}
	if n == 0 {
		t.Error("memory_fts virtual table missing")
	}
}

func TestOpen_Reentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Close()

	// Reopening must not re-apply migrations.
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second.Close()
}
