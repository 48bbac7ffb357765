package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig holds the configuration for a SQLite database.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:" for an in-memory database.
	Path string `yaml:"path"`

	// BusyTimeout is how long a connection waits on a locked database
	// before failing with SQLITE_BUSY. Default: 5 seconds.
	BusyTimeout time.Duration `yaml:"busyTimeout"`

	// MaxOpenConnections caps concurrent connections. SQLite serializes
	// writers, so a small pool avoids lock contention. Default: 1.
	MaxOpenConnections int `yaml:"maxOpenConnections"`

	// ForeignKeys enables foreign key enforcement. Default: true when
	// loaded through DefaultSQLiteConfig.
	ForeignKeys bool `yaml:"foreignKeys"`
}

// DefaultSQLiteConfig returns the default SQLite configuration
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		BusyTimeout:        5 * time.Second,
		MaxOpenConnections: 1,
		ForeignKeys:        true,
	}
}

// SQLite implements the Database interface using the mattn/go-sqlite3 driver
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite database with default settings
func NewSQLite(path string) (*SQLite, error) {
	config := DefaultSQLiteConfig()
	config.Path = path
	return NewSQLiteWithConfig(config)
}

// NewSQLiteWithConfig creates a new SQLite database with custom configuration
func NewSQLiteWithConfig(config *SQLiteConfig) (*SQLite, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}
	if config.MaxOpenConnections == 0 {
		config.MaxOpenConnections = 1
	}

	db, err := sql.Open("sqlite3", sqliteDSN(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConnections)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLite{db: db}, nil
}

func sqliteDSN(config *SQLiteConfig) string {
	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprintf("%d", config.BusyTimeout.Milliseconds()))
	if config.ForeignKeys {
		params.Set("_foreign_keys", "on")
	}
	return fmt.Sprintf("file:%s?%s", config.Path, params.Encode())
}

// Query executes a query that returns rows
func (s *SQLite) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &sqlRows{rows: rows}, nil
}

// QueryRow executes a query that returns at most one row
func (s *SQLite) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// Exec executes a query that doesn't return rows
func (s *SQLite) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transaction executes a function within a database transaction
func (s *SQLite) Transaction(ctx context.Context, fn func(tx Transaction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	sqlTx := &sqlTransaction{tx: tx}
	if err := fn(sqlTx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	return sqlTx.Commit()
}

// BeginTx starts a new transaction
func (s *SQLite) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	return &sqlTransaction{tx: tx}, nil
}

// Ping verifies a connection to the database is still alive
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}
