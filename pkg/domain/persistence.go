package domain

import (
	"context"
	"time"
)

// RemoteDriver identifies a concrete remote document store backend.
type RemoteDriver string

// Supported remote drivers.
const (
	RemoteMemory   RemoteDriver = "memory"   // in-memory (tests / ephemeral)
	RemoteS3       RemoteDriver = "s3"       // S3 / MinIO compatible, one object per user
	RemotePostgres RemoteDriver = "postgres" // PostgreSQL, one row per user
)

// RemoteStore is the remote last-write-wins document store holding one
// document per user. The sync engine is its only caller.
type RemoteStore interface {
	// Fetch returns the user's document, or ErrDocumentNotFound.
	Fetch(ctx context.Context, userID string) (UserDocument, error)
	// Put replaces the user's document wholesale. A non-zero expect makes
	// the write conditional: drivers that support it reject the write
	// with ErrVersionConflict unless the stored document's LastUpdated
	// still equals expect. Drivers without conditional writes ignore
	// expect and keep last-writer-wins semantics.
	Put(ctx context.Context, userID string, doc UserDocument, expect time.Time) error
	// Watch subscribes to remote document replacements for the user. The
	// channel closes when ctx is cancelled. Drivers that cannot push
	// return ErrUnsupported.
	Watch(ctx context.Context, userID string) (<-chan UserDocument, error)
	// Driver returns the configured backend identifier.
	Driver() RemoteDriver
}

// CacheDriver identifies a concrete local snapshot cache backend.
type CacheDriver string

// Supported cache drivers.
const (
	CacheMemory CacheDriver = "memory" // in-memory (tests)
	CacheSQLite CacheDriver = "sqlite" // embedded sqlite file
)

// SnapshotCache is the local durable mirror of the last successfully
// persisted document, read when the remote store is unreachable.
type SnapshotCache interface {
	// Read returns the cached document, or ErrDocumentNotFound.
	Read(ctx context.Context, userID string) (UserDocument, error)
	// Write replaces the cached document.
	Write(ctx context.Context, userID string, doc UserDocument) error
	// Driver returns the configured backend identifier.
	Driver() CacheDriver
}
