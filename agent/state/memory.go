package state

import (
	"context"
	"sync"
	"time"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (*Session, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = newSession(sessionID, m.now())
		m.sessions[sessionID] = s
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, contractx.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if err := validateSessionID(s.ID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := s.metadata()
	stored.UpdatedAt = m.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	if existing, ok := m.sessions[s.ID]; ok {
		stored.Conversation = existing.Conversation
	}
	m.sessions[s.ID] = stored
	return nil
}

func (m *MemoryStore) AppendTurns(_ context.Context, sessionID string, turns ...contractx.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return contractx.ErrSessionNotFound
	}
	s.Conversation = append(s.Conversation, turns...)
	return nil
}

func (m *MemoryStore) ResetConversation(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return contractx.ErrSessionNotFound
	}
	s.Conversation = nil
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
