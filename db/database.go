package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by every Database method after Close.
var ErrClosed = errors.New("database connection is closed")

// Database owns the store's SQLite connection.
//
//	store, err := db.Open("captures/captures.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open creates the parent directory of path if needed, applies pending
// migrations and returns the connected Database.
func Open(path string) (*Database, error) {
	d, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// NewDatabase connects to path without migrating.
func NewDatabase(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	conn, err := NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	return &Database{db: conn, path: path}, nil
}

// Migrate applies the embedded migrations on a separate connection, since
// golang-migrate closes the connection it is given.
func (d *Database) Migrate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := MigrateUpFromPath(d.path); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection. It is safe to call more than once.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return ErrClosed
	}
	return d.db.PingContext(ctx)
}

func (d *Database) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrClosed
	}
	return d.db.ExecContext(ctx, query, args...)
}

func (d *Database) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrClosed
	}
	return d.db.QueryContext(ctx, query, args...)
}

// queryRow runs a single-row query and scans it into dest.
func (d *Database) queryRow(ctx context.Context, query string, args []any, dest ...any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return ErrClosed
	}
	return d.db.QueryRowContext(ctx, query, args...).Scan(dest...)
}
