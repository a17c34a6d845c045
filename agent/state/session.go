package state

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
)

// Session is the per-client chat state. Conversation is append-only between resets.
type Session struct {
	ID            string           `json:"id"`
	Authenticated bool             `json:"authenticated"`
	SelectedUser  *records.User    `json:"selected_user,omitempty"`
	Conversation  []contractx.Turn `json:"conversation,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func newSession(id string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand across goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.SelectedUser != nil {
		user := *s.SelectedUser
		out.SelectedUser = &user
	}
	out.Conversation = contractx.CloneTurns(s.Conversation)
	return &out
}

// metadata drops the conversation; backends that keep turns in a list store it separately.
func (s *Session) metadata() *Session {
	out := s.Clone()
	out.Conversation = nil
	return out
}

func validateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidSession
	}
	return nil
}
