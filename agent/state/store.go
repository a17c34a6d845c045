package state

import (
	"context"
	"errors"
	"time"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

var (
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

const (
	defaultStoreKeyPrefix = "csa:session:"
	defaultStoreTTL       = 24 * time.Hour
)

// Store persists sessions and their append-only conversation log.
// Missing sessions surface as contract.ErrSessionNotFound.
type Store interface {
	GetOrCreate(ctx context.Context, sessionID string) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Save writes session metadata; the conversation is only changed through AppendTurns and ResetConversation.
	Save(ctx context.Context, s *Session) error
	AppendTurns(ctx context.Context, sessionID string, turns ...contractx.Turn) error
	ResetConversation(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}

type storeOptions struct {
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// StoreOption customizes the Redis-backed stores.
type StoreOption func(*storeOptions)

func WithKeyPrefix(prefix string) StoreOption {
	return func(o *storeOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

func withClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

func buildOptions(opts []StoreOption) (storeOptions, error) {
	o := storeOptions{
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.ttl < 0 {
		return o, errors.New("ttl must be >= 0")
	}
	return o, nil
}

func (o storeOptions) metaKey(sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	return o.keyPrefix + sessionID, nil
}

func (o storeOptions) turnsKey(sessionID string) string {
	return o.keyPrefix + sessionID + ":turns"
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
