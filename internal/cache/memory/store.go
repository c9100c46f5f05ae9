// Package memory provides an in-memory snapshot cache for tests.
package memory

import (
	"context"
	"sync"

	"budgetcore/pkg/domain"
)

var _ domain.SnapshotCache = (*Store)(nil)

// Store keeps cached documents in a map.
type Store struct {
	mu   sync.Mutex
	docs map[string]domain.UserDocument
}

// NewStore returns an empty in-memory cache.
func NewStore() *Store {
	return &Store{docs: make(map[string]domain.UserDocument)}
}

// Driver reports the backend identifier.
func (s *Store) Driver() domain.CacheDriver { return domain.CacheMemory }

// Read returns a deep copy of the cached document.
func (s *Store) Read(_ context.Context, userID string) (domain.UserDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return domain.UserDocument{}, domain.ErrDocumentNotFound
	}
	return domain.CloneDocument(doc), nil
}

// Write replaces the cached document.
func (s *Store) Write(_ context.Context, userID string, doc domain.UserDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = domain.CloneDocument(doc)
	return nil
}
