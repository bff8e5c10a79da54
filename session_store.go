package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SessionStore keeps at most one session pointer per principal. A refresh
// credential is honored only while its session id equals the stored pointer.
type SessionStore interface {
	// Put overwrites the pointer unconditionally.
	Put(ctx context.Context, principalID, sessionID uuid.UUID) error
	// Get returns the current pointer, found is false when absent.
	Get(ctx context.Context, principalID uuid.UUID) (sessionID uuid.UUID, found bool, err error)
	// Clear removes the pointer.
	Clear(ctx context.Context, principalID uuid.UUID) error
	// Swap replaces the pointer with next only if it still equals expected.
	Swap(ctx context.Context, principalID, expected, next uuid.UUID) (bool, error)
}

// MemorySessionStore is a process local SessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	pointers map[uuid.UUID]uuid.UUID
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{pointers: map[uuid.UUID]uuid.UUID{}}
}

func (s *MemorySessionStore) Put(ctx context.Context, principalID, sessionID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[principalID] = sessionID
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, principalID uuid.UUID) (uuid.UUID, bool, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pointers[principalID]
	return id, ok, nil
}

func (s *MemorySessionStore) Clear(ctx context.Context, principalID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pointers, principalID)
	return nil
}

func (s *MemorySessionStore) Swap(ctx context.Context, principalID, expected, next uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.pointers[principalID]; !ok || current != expected {
		return false, nil
	}
	s.pointers[principalID] = next
	return true, nil
}
