package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/todovault/core/internal/infrastructure/config"
)

// DB is the explicit handle over the single SQLite backing file. All
// repository traffic goes through it under a shared lock; the backup job
// takes the exclusive lock, closes the handle, copies the file and
// reopens. The single connection serializes conflicting row writes.
type DB struct {
	mu   sync.RWMutex
	db   *sqlx.DB
	path string
}

// Open creates the data directory if needed and opens the store.
func Open(cfg config.StorageConfig) (*DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := cfg.DatabasePath()
	db, err := open(path)
	if err != nil {
		return nil, err
	}

	return &DB{db: db, path: path}, nil
}

func open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: SQLite is a single-writer store and the backup
	// lifecycle depends on there being exactly one handle to close.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Path returns the location of the backing file.
func (d *DB) Path() string {
	return d.path
}

// Close closes the store handle.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.PingContext(ctx)
}

// GetContext scans a single row into dest.
func (d *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.GetContext(ctx, dest, query, args...)
}

// SelectContext scans all rows into dest.
func (d *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.SelectContext(ctx, dest, query, args...)
}

// ExecContext executes a statement.
func (d *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.ExecContext(ctx, query, args...)
}

// Exclusive closes the backing handle, runs fn with sole access to the
// file, then reopens the handle. All other store access blocks for the
// duration, so no writer can race the copy.
func (d *DB) Exclusive(fn func(path string) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close store for exclusive access: %w", err)
	}

	fnErr := fn(d.path)

	db, err := open(d.path)
	if err != nil {
		return fmt.Errorf("reopen store: %w", err)
	}
	d.db = db

	return fnErr
}
