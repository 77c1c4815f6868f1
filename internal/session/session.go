package session

import (
	"context"
	"sync"

	"github.com/gradebook-io/gradebook/internal/auth"
	"github.com/gradebook-io/gradebook/internal/grades"
)

// Session is the per-browser-session state. The zero value is a fresh,
// unauthenticated session.
type Session struct {
	Authenticated   bool          `json:"authenticated"`
	Profile         *auth.Profile `json:"profile,omitempty"`
	StudentID       string        `json:"student_id,omitempty"`
	GradeRow        *grades.Row   `json:"grade_row,omitempty"`
	PendingAuthCode string        `json:"pending_auth_code,omitempty"`
	OAuthState      string        `json:"oauth_state,omitempty"`
}

// Store persists sessions across renders. Get on an unknown id returns
// a fresh session; Clear returns the session to its initial empty state
// (logout is indistinguishable from a new session).
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, id string, s Session) error
	Clear(ctx context.Context, id string) error
}

// MemoryStore is the default single-process store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]Session{},
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sessions[id], nil
}

func (m *MemoryStore) Put(ctx context.Context, id string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = s

	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)

	return nil
}
