package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"redraft/internal/logging"
)

// SchemaVersion is the current kv schema.
const SchemaVersion = 1

// SQLiteStore persists values in a single kv table.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	path   string
	closed bool
}

// NewSQLiteStore opens (or creates) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	logging.Store("Opening SQLite store at %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
		if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("SQLite store ready (schema v%d)", SchemaVersion)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	kv := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(kv); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}

	versions := `
	CREATE TABLE IF NOT EXISTS schema_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(versions); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	if s.schemaVersion() < SchemaVersion {
		if _, err := s.db.Exec("INSERT INTO schema_versions (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		logging.Store("Schema version set to %d", SchemaVersion)
	}
	return nil
}

func (s *SQLiteStore) schemaVersion() int {
	var v int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&v); err != nil {
		return 0
	}
	return v
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		logging.StoreError("Get %s failed: %v", key, err)
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		logging.StoreError("Set %s failed: %v", key, err)
		return fmt.Errorf("set %s: %w", key, err)
	}
	logging.StoreDebug("Set %s (%d bytes)", key, len(value))
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		logging.StoreError("Clear %s failed: %v", key, err)
		return fmt.Errorf("clear %s: %w", key, err)
	}
	return nil
}

// Close closes the database. Further calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}
