// Package storage owns the durable tier's SQLite connection and schema.
// Both the Selector Cache's durable tier and the Heal History store open
// through the same *Store so they share one WAL-mode connection and one
// migration set.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Store wraps the durable-tier SQLite connection.
type Store struct {
	conn *sql.DB
}

// Open creates (or reopens) the SQLite database at path and brings its
// schema up to date. A single connection is used throughout: SQLite
// tolerates no more than one writer at a time, and WAL mode lets readers
// proceed without blocking on it.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying *sql.DB for use by collaborating packages
// (cache, healhistory) that need direct query/exec access.
func (s *Store) Conn() *sql.DB {
	return s.conn
}
