package db

import (
	"path/filepath"
	"testing"
)

func TestNewSQLiteConnection_EnablesWALAndForeignKeys(t *testing.T) {
	conn, err := NewSQLiteConnectionWithDefaults(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteConnection: %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := conn.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	if got := conn.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

func TestNewSQLiteConnection_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteConnection(ConnectionConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}
