package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"budgetcore/pkg/domain"
)

var now = time.Date(2024, time.July, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *stubDB) {
	t.Helper()
	stub := newStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return sql.OpenDB(stub), nil
	})
	t.Cleanup(restore)

	s, err := NewStore(context.Background(), "postgres://stub")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, stub
}

func TestFetchMissingUser(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Fetch(context.Background(), "nobody"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestPutFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	doc := domain.NewDefaultDocument(now)
	doc.LastUpdated = now
	if err := s.Put(ctx, "u1", doc, time.Time{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Fetch(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.CurrentDashboardID != doc.CurrentDashboardID {
		t.Fatalf("document changed in round trip")
	}
	if got.Version != domain.SchemaVersion {
		t.Fatalf("version = %d", got.Version)
	}
}

func TestConditionalPut(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	doc := domain.NewDefaultDocument(now)
	doc.LastUpdated = now
	if err := s.Put(ctx, "u1", doc, time.Time{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc.LastUpdated = now.Add(time.Minute)
	if err := s.Put(ctx, "u1", doc, now); err != nil {
		t.Fatalf("conditional put with matching stamp: %v", err)
	}

	doc.LastUpdated = now.Add(2 * time.Minute)
	if err := s.Put(ctx, "u1", doc, now); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	got, err := s.Fetch(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !got.LastUpdated.Equal(now.Add(time.Minute)) {
		t.Fatalf("rejected write modified the row: %s", got.LastUpdated)
	}
}

func TestWatchUnsupported(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Watch(context.Background(), "u1"); !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	stub := newStubDB()
	stub.failPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		return sql.OpenDB(stub), nil
	})
	defer restore()

	if _, err := NewStore(context.Background(), "postgres://stub"); err == nil {
		t.Fatalf("expected ping failure to surface")
	}
}
