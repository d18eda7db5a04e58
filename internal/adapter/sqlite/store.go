// Package sqlite implements the persistence ports on SQLite. One database
// holds the tenant aggregate, the plans, the append-only event log and the
// step workers' side-effect tables (schemas, credentials), plus River's job
// tables, so a single file is the whole durable state of the system.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeFormat is the canonical storage format for timestamps. It sorts
// lexicographically, which ListStale relies on.
const timeFormat = "2006-01-02T15:04:05Z"

// Open opens a SQLite database with the pragmas the queue and repositories
// need and runs the schema migrations.
func Open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := Configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Configure applies connection settings to an already opened database. Use
// this when the *sql.DB was built elsewhere (e.g. with otelsql instrumentation).
func Configure(db *sql.DB) error {
	// SQLite performs best with a single connection when sharing the DB
	// with an embedded job queue (River). This avoids SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	return nil
}

// Migrate runs the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation
// on the given column. The store reports which constraint fired so callers
// can tell "duplicate tenant" apart from "duplicate credential redelivery".
func isUniqueViolation(err error, column string) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), column)
}
