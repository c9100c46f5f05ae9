// Package memory provides an in-memory remote document store used by
// tests and ephemeral deployments. It supports conditional writes and
// change notifications, making it the most capable driver.
package memory

import (
	"context"
	"sync"
	"time"

	"budgetcore/pkg/domain"
)

// Store holds one document per user behind a mutex.
type Store struct {
	mu       sync.Mutex
	docs     map[string]domain.UserDocument
	watchers map[string][]chan domain.UserDocument
}

var _ domain.RemoteStore = (*Store)(nil)

// NewStore returns an empty in-memory remote store.
func NewStore() *Store {
	return &Store{
		docs:     make(map[string]domain.UserDocument),
		watchers: make(map[string][]chan domain.UserDocument),
	}
}

// Driver reports the backend identifier.
func (s *Store) Driver() domain.RemoteDriver { return domain.RemoteMemory }

// Fetch returns a deep copy of the user's document.
func (s *Store) Fetch(_ context.Context, userID string) (domain.UserDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return domain.UserDocument{}, domain.ErrDocumentNotFound
	}
	return domain.CloneDocument(doc), nil
}

// Put replaces the user's document. A non-zero expect enforces a
// compare-and-swap on the stored LastUpdated stamp. Watchers for other
// sessions of the same user are notified with a copy of the new document.
func (s *Store) Put(_ context.Context, userID string, doc domain.UserDocument, expect time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !expect.IsZero() {
		current, ok := s.docs[userID]
		if ok && !current.LastUpdated.Equal(expect) {
			return domain.ErrVersionConflict
		}
	}
	s.docs[userID] = domain.CloneDocument(doc)
	for _, ch := range s.watchers[userID] {
		select {
		case ch <- domain.CloneDocument(doc):
		default: // slow watcher drops the push; the next save carries the state
		}
	}
	return nil
}

// Watch subscribes to document replacements for the user. The channel is
// buffered by one push and closes when ctx is cancelled.
func (s *Store) Watch(ctx context.Context, userID string) (<-chan domain.UserDocument, error) {
	ch := make(chan domain.UserDocument, 1)
	s.mu.Lock()
	s.watchers[userID] = append(s.watchers[userID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		subs := s.watchers[userID]
		for i, sub := range subs {
			if sub == ch {
				s.watchers[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}
