package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps session metadata as a JSON string and turns in a Redis list.
type RedisStore struct {
	rdb  redis.Cmdable
	opts storeOptions
}

func NewRedisStore(rdb redis.Cmdable, opts ...StoreOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return &RedisStore{rdb: rdb, opts: o}, nil
}

func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(newSession(sessionID, s.opts.now()))
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.SetNX(ctx, key, payload, s.opts.ttl).Err(); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s.Get(ctx, sessionID)
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, contractx.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	rows, err := s.rdb.LRange(ctx, s.opts.turnsKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	sess.Conversation = make([]contractx.Turn, 0, len(rows))
	for i, row := range rows {
		var turn contractx.Turn
		if err := json.Unmarshal([]byte(row), &turn); err != nil {
			return nil, fmt.Errorf("unmarshal turn %d: %w", i, err)
		}
		sess.Conversation = append(sess.Conversation, turn)
	}

	s.touch(ctx, sessionID)
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil {
		return ErrNilSession
	}
	key, err := s.opts.metaKey(sess.ID)
	if err != nil {
		return err
	}

	meta := sess.metadata()
	meta.UpdatedAt = s.opts.now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = meta.UpdatedAt
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, key, payload, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendTurns(ctx context.Context, sessionID string, turns ...contractx.Turn) error {
	key, err := s.requireSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		b, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, b)
	}

	turnsKey := s.opts.turnsKey(sessionID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, turnsKey, values...)
		if s.opts.ttl > 0 {
			pipe.Expire(ctx, turnsKey, s.opts.ttl)
			pipe.Expire(ctx, key, s.opts.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append turns: %w", err)
	}
	return nil
}

func (s *RedisStore) ResetConversation(ctx context.Context, sessionID string) error {
	if _, err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.opts.turnsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, key, s.opts.turnsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) requireSession(ctx context.Context, sessionID string) (string, error) {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return "", err
	}
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return "", contractx.ErrSessionNotFound
	}
	return key, nil
}

func (s *RedisStore) touch(ctx context.Context, sessionID string) {
	if s.opts.ttl <= 0 {
		return
	}
	key, _ := s.opts.metaKey(sessionID)
	_, _ = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, key, s.opts.ttl)
		pipe.Expire(ctx, s.opts.turnsKey(sessionID), s.opts.ttl)
		return nil
	})
}
