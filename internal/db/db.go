package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Keys of the settings table
const (
	SettingTheme       = "theme"
	SettingInitialized = "bootstrap.initialized"
	// SettingMigrationPending is set while a legacy migration is incomplete
	SettingMigrationPending = "bootstrap.migration_pending"
	SettingLastView         = "last_view"
)

const (
	// DriverCGo is github.com/mattn/go-sqlite3
	DriverCGo = "sqlite3"
	// DriverPure is modernc.org/sqlite
	DriverPure = "sqlite"
)

// Options configure a DB
type Options struct {
	// Driver is DriverCGo (default) or DriverPure
	Driver string
	// Path of the database file
	Path string
	// BusyTimeout bounds how long a statement waits on a locked database
	BusyTimeout time.Duration
	// Logger receives debug output; nil discards it
	Logger *log.Logger
}

// DB is the local store for projects and tasks. It is created unopened;
// every operation opens the connection on first use.
type DB struct {
	opts   Options
	logger *log.Logger

	mu   sync.Mutex
	conn *sql.DB
}

// New creates a DB without touching the filesystem
func New(opts Options) *DB {
	if opts.Driver == "" {
		opts.Driver = DriverCGo
	}
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &DB{opts: opts, logger: logger}
}

// Open establishes the connection and creates the schema. It is safe to call
// repeatedly; later calls reuse the existing connection.
func (db *DB) Open(ctx context.Context) error {
	_, err := db.handle(ctx)
	return err
}

func (db *DB) handle(ctx context.Context) (*sql.DB, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		return db.conn, nil
	}

	conn, err := db.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	db.conn = conn
	db.logger.Printf("db: opened %s (%s)", db.opts.Path, db.opts.Driver)
	return conn, nil
}

func (db *DB) connect(ctx context.Context) (*sql.DB, error) {
	if db.opts.Path == "" {
		return nil, fmt.Errorf("no database path configured")
	}
	if err := os.MkdirAll(filepath.Dir(db.opts.Path), 0755); err != nil {
		return nil, err
	}

	dsn, err := db.dsn()
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(db.opts.Driver, dsn)
	if err != nil {
		return nil, err
	}
	// A single connection makes SQLite serialize every write
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return conn, nil
}

func (db *DB) dsn() (string, error) {
	ms := db.opts.BusyTimeout.Milliseconds()
	switch db.opts.Driver {
	case DriverCGo:
		return fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL", db.opts.Path, ms), nil
	case DriverPure:
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", db.opts.Path, ms), nil
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", db.opts.Driver)
	}
}

// Close releases the connection. A closed DB reopens on next use.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Path returns the database file location
func (db *DB) Path() string {
	return db.opts.Path
}

// DefaultPath returns the database location under the XDG data directory
func DefaultPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "projectflow", "projectflow.db"), nil
}

// Counts returns the number of projects and tasks
func (db *DB) Counts(ctx context.Context) (projects, tasks int, err error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return 0, 0, err
	}
	err = conn.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM projects), (SELECT COUNT(*) FROM tasks)
	`).Scan(&projects, &tasks)
	return projects, tasks, err
}

// Clear removes every project and task. Settings are kept.
func (db *DB) Clear(ctx context.Context) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM projects"); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSetting retrieves a setting value by key. Missing keys report ok=false.
func (db *DB) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	conn, err := db.handle(ctx)
	if err != nil {
		return "", false, err
	}
	err = conn.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting sets a setting value
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// DeleteSetting removes a setting; missing keys are not an error
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	conn, err := db.handle(ctx)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}
