package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/devbridge/internal/project"
)

//go:embed schema.sql
var schemaSQL string

// LockFileName is the lock file created next to the database file.
const LockFileName = "bridge.lock"

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on records.entity_type for search streaming
const currentSchemaVersion = 1

// Store is the shared relational store of one project.
// Safe for concurrent use; the pool bounds simultaneous connections.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open creates the database directory if needed, locks it, and opens the
// SQLite database inside it. Applies pragmas and migrations automatically.
//
// Failing to create the directory is a *StartupError. A directory already
// locked by another bridge yields ErrLocked.
func Open(ctx context.Context, dir string, cfg project.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StartupError{Path: dir, Err: err}
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, &StartupError{Path: lock.Path(), Err: err}
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	path := filepath.Join(dir, project.DatabaseFileName)
	db, err := sql.Open("sqlite3", dsn(path, cfg))
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	poolSize := max(cfg.PoolSize, 1)
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, lock: lock, path: path}, nil
}

// dsn builds the go-sqlite3 connection string carrying the per-connection
// pragmas.
func dsn(path string, cfg project.StoreConfig) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10))
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

// Close closes the connection pool and releases the directory lock.
// Waits for in-use connections to be returned.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	if unlockErr := s.lock.Unlock(); err == nil {
		err = unlockErr
	}
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes records by entity type so search can stream one
// entity's nodes without a table scan.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_records_entity_type
		ON records(entity_type, pk, sk)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
