package session

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe in-memory Store. Sessions are lost on
// restart; intended for single-process deployments and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[string]Session
	byRefresh map[string]string // refresh token -> session ID, current values only
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[string]Session),
		byRefresh: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = *s
	m.byRefresh[s.RefreshToken] = s.ID
	return nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *MemoryStore) FindActiveByID(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok || s.Revoked {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *MemoryStore) FindByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRefresh[refreshToken]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

// Rotate is the compare-and-swap at the heart of single-use rotation: the
// stored token must still equal oldToken while we hold the write lock.
func (m *MemoryStore) Rotate(ctx context.Context, s *Session, oldToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[s.ID]
	if !ok {
		return ErrNotFound
	}
	if current.RefreshToken != oldToken {
		return ErrConflict
	}
	delete(m.byRefresh, oldToken)
	m.byID[s.ID] = *s
	m.byRefresh[s.RefreshToken] = s.ID
	return nil
}

func (m *MemoryStore) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.Revoke()
	m.byID[id] = s
	return nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.byID {
		if s.UserID == userID {
			cp := s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) RevokeAllForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.byID {
		if s.UserID == userID {
			s.Revoke()
			m.byID[id] = s
		}
	}
	return nil
}

func (m *MemoryStore) DeleteByUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.byID {
		if s.UserID == userID {
			delete(m.byRefresh, s.RefreshToken)
			delete(m.byID, id)
		}
	}
	return nil
}
