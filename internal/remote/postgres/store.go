// Package postgres provides a PostgreSQL-backed remote document store
// with one row per user. The LastUpdated stamp doubles as the version
// for conditional writes, so concurrent sessions get a clean
// ErrVersionConflict instead of silently clobbering each other.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"budgetcore/pkg/domain"
)

var _ domain.RemoteStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/budgetcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists one document row per user.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres remote store using the provided DSN (falls
// back to defaultDSN) and ensures the document table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenFromEnv constructs a Postgres remote store from process
// environment.
//
//	BUDGETCORE_REMOTE_POSTGRES_DSN: connection string (default local)
func OpenFromEnv(ctx context.Context) (*Store, error) {
	return NewStore(ctx, os.Getenv("BUDGETCORE_REMOTE_POSTGRES_DSN"))
}

func ensureDocumentTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS user_documents (
		user_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure user_documents table: %w", err)
	}
	return nil
}

// Driver reports the backend identifier.
func (s *Store) Driver() domain.RemoteDriver { return domain.RemotePostgres }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Fetch reads and decodes the user's row. The payload runs through the
// schema migration so rows written by older releases load cleanly.
func (s *Store) Fetch(ctx context.Context, userID string) (domain.UserDocument, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM user_documents WHERE user_id = $1`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserDocument{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return domain.UserDocument{}, fmt.Errorf("select document: %w", err)
	}
	doc, err := domain.Migrate(payload, time.Now().UTC())
	if err != nil {
		return domain.UserDocument{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Put upserts the user's row. With a non-zero expect the update only
// lands when the stored last_updated still matches, otherwise
// ErrVersionConflict.
func (s *Store) Put(ctx context.Context, userID string, doc domain.UserDocument, expect time.Time) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if expect.IsZero() {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO user_documents(user_id, payload, last_updated) VALUES($1, $2, $3)
			 ON CONFLICT(user_id) DO UPDATE SET payload = EXCLUDED.payload, last_updated = EXCLUDED.last_updated`,
			userID, payload, doc.LastUpdated)
		if err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_documents SET payload = $2, last_updated = $3
		 WHERE user_id = $1 AND last_updated = $4`,
		userID, payload, doc.LastUpdated, expect)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// Watch is not available over plain SQL polling-free connections.
func (s *Store) Watch(context.Context, string) (<-chan domain.UserDocument, error) {
	return nil, domain.ErrUnsupported
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
