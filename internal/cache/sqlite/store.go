// Package sqlite provides the durable local snapshot cache on an
// embedded SQLite file. One row per user holding the last successfully
// persisted document as a JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"budgetcore/pkg/domain"
)

var _ domain.SnapshotCache = (*Store)(nil)

// Store mirrors user documents into a SQLite file.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the cache database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "budgetcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		user_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		written_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenFromEnv constructs the cache from process environment.
//
//	BUDGETCORE_CACHE_SQLITE_PATH: database file path (default budgetcore.db)
func OpenFromEnv() (*Store, error) {
	return NewStore(os.Getenv("BUDGETCORE_CACHE_SQLITE_PATH"))
}

// Driver reports the backend identifier.
func (s *Store) Driver() domain.CacheDriver { return domain.CacheSQLite }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Read returns the cached document for the user. The payload runs
// through the schema migration so caches written by older releases load
// cleanly.
func (s *Store) Read(ctx context.Context, userID string) (domain.UserDocument, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE user_id = ?`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserDocument{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.UserDocument{}, fmt.Errorf("select snapshot: %w", err)
	}
	doc, err := domain.Migrate(payload, time.Now().UTC())
	if err != nil {
		return domain.UserDocument{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc, nil
}

// Write replaces the cached document for the user.
func (s *Store) Write(ctx context.Context, userID string, doc domain.UserDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots(user_id, payload, written_at) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET payload=excluded.payload, written_at=excluded.written_at`,
		userID, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
