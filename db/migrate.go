package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SchemaVersion is the highest migration shipped with this build.
const SchemaVersion = 2

// MigrateUp applies all pending migrations. golang-migrate closes conn when
// it finishes, so pass a connection opened for this purpose only.
func MigrateUp(conn *sql.DB) error {
	m, err := newMigrator(conn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrateUpFromPath opens its own connection to path and applies all
// pending migrations.
func MigrateUpFromPath(path string) error {
	conn, err := NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		return err
	}
	return MigrateUp(conn)
}

// MigrationVersion returns the applied schema version and whether the last
// migration left the database dirty. A fresh database reports 0.
func MigrationVersion(path string) (uint, bool, error) {
	conn, err := NewSQLiteConnectionWithDefaults(path)
	if err != nil {
		return 0, false, err
	}
	m, err := newMigrator(conn)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

// newMigrator binds the embedded migration files to conn. The returned
// migrator owns conn.
func newMigrator(conn *sql.DB) (*migrate.Migrate, error) {
	if conn == nil {
		return nil, errors.New("database connection is required")
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{DatabaseName: "main"})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
