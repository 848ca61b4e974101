package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlyBadawy/Securial-sub000/internal/util"
)

// MemoryStore is a thread-safe in-memory user store.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string // normalized email -> user ID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryStore) FindByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}

func (m *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[util.NormalizeIdentifier(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := m.byID[id]
	return &u, nil
}

func (m *MemoryStore) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.EmailAddress = util.NormalizeIdentifier(u.EmailAddress)
	m.byID[u.ID] = *u
	m.byEmail[u.EmailAddress] = u.ID
	return nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id string, hash PasswordHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Password = hash
	m.byID[id] = u
	return nil
}
