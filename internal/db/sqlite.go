// Package db is the persistence collaborator: a SQLite database holding the
// ripple-compatible users and hw_user tables, and repositories over them.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// ErrDatabaseUnavailable wraps every driver failure so callers can tell a
// storage outage apart from a missing record.
var ErrDatabaseUnavailable = errors.New("db: database unavailable")

// Database wraps a SQLite connection. Writes are serialised because SQLite
// allows only one writer.
type Database struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the database at dbPath and applies the schema.
func Open(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDatabaseUnavailable, dbPath, err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		log.Warn().Err(err).Msg("failed to set busy timeout")
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrDatabaseUnavailable, err)
	}

	d := &Database{db: sqlDB, path: dbPath}
	if err := d.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Info().Str("path", dbPath).Msg("database opened")
	return d, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the file the database was opened from.
func (d *Database) Path() string {
	return d.path
}

// Ping checks that the database still answers.
func (d *Database) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	return nil
}

// Exec runs a statement that returns no rows.
func (d *Database) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	return res, nil
}

// QueryRow runs a query expected to return at most one row.
func (d *Database) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Transaction runs fn inside a transaction, rolling back if it fails.
func (d *Database) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrDatabaseUnavailable, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrDatabaseUnavailable, err)
	}
	return nil
}

// scanErr maps a row scan error: no rows is not an error, anything else is a
// storage failure.
func scanErr(err error) (found bool, _ error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
}
