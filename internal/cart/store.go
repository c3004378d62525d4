package cart

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown, expired or foreign drafts.
var ErrNotFound = errors.New("cart: draft not found")

// Store persists drafts. Update applies fn to a copy of the draft and, when fn
// succeeds, replaces the stored draft with it as a whole. Updates to the same
// draft are serialized.
type Store interface {
	Create(ctx context.Context, d Draft) error
	Get(ctx context.Context, id string) (Draft, error)
	Update(ctx context.Context, id string, fn func(*Draft) error) (Draft, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	draft     Draft
	expiresAt time.Time
}

// MemoryStore keeps drafts in process memory with sliding expiry.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore returns a MemoryStore. A ttl of zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *MemoryStore) lookupLocked(id string) (memoryEntry, bool) {
	e, ok := s.items[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.items, id)
		return memoryEntry{}, false
	}
	return e, true
}

// Create stores a new draft.
func (s *MemoryStore) Create(_ context.Context, d Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.items[d.ID] = memoryEntry{draft: d.Clone(), expiresAt: s.expiry()}
	return nil
}

// Get returns a copy of the draft.
func (s *MemoryStore) Get(_ context.Context, id string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookupLocked(id)
	if !ok {
		return Draft{}, ErrNotFound
	}
	return e.draft.Clone(), nil
}

// Update applies fn under the store lock.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Draft) error) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookupLocked(id)
	if !ok {
		return Draft{}, ErrNotFound
	}
	next := e.draft.Clone()
	if err := fn(&next); err != nil {
		return Draft{}, err
	}
	next.UpdatedAt = s.now()
	s.items[id] = memoryEntry{draft: next, expiresAt: s.expiry()}
	return next.Clone(), nil
}

// Delete discards the draft. Deleting an unknown draft is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	for id, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, id)
		}
	}
}
