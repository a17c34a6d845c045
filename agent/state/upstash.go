package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

const maxResponseSizeBytes = 2 << 20

var _ Store = (*UpstashRedisStore)(nil)

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashRedisStore uses the same key layout as RedisStore through the Upstash REST API.
type UpstashRedisStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	opts       storeOptions
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, httpClient *http.Client, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &UpstashRedisStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		opts:       o,
	}, nil
}

func (s *UpstashRedisStore) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(newSession(sessionID, s.opts.now()))
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	cmd := []any{"SET", key, string(payload), "NX"}
	if s.opts.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.opts.ttl))
	}
	if _, err := s.exec(ctx, cmd); err != nil {
		return nil, err
	}
	return s.Get(ctx, sessionID)
}

func (s *UpstashRedisStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}
	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, contractx.ErrSessionNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode session payload: %w", err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(encoded), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	resp, err = s.exec(ctx, []any{"LRANGE", s.opts.turnsKey(sessionID), 0, -1})
	if err != nil {
		return nil, err
	}
	var rows []string
	if res := bytes.TrimSpace(resp.Result); len(res) > 0 && !bytes.Equal(res, []byte("null")) {
		if err := json.Unmarshal(res, &rows); err != nil {
			return nil, fmt.Errorf("decode conversation payload: %w", err)
		}
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

func (s *UpstashRedisStore) Save(ctx context.Context, sess *Session) error {
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

	cmd := []any{"SET", key, string(payload)}
	if s.opts.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.opts.ttl))
	}
	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) AppendTurns(ctx context.Context, sessionID string, turns ...contractx.Turn) error {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	turnsKey := s.opts.turnsKey(sessionID)
	cmd := []any{"RPUSH", turnsKey}
	for _, turn := range turns {
		b, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		cmd = append(cmd, string(b))
	}
	if _, err := s.exec(ctx, cmd); err != nil {
		return err
	}
	s.touch(ctx, sessionID)
	return nil
}

func (s *UpstashRedisStore) ResetConversation(ctx context.Context, sessionID string) error {
	if err := s.requireSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.exec(ctx, []any{"DEL", s.opts.turnsKey(sessionID)})
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key, s.opts.turnsKey(sessionID)})
	return err
}

func (s *UpstashRedisStore) requireSession(ctx context.Context, sessionID string) error {
	key, err := s.opts.metaKey(sessionID)
	if err != nil {
		return err
	}
	resp, err := s.exec(ctx, []any{"EXISTS", key})
	if err != nil {
		return err
	}
	var n int64
	if err := json.Unmarshal(resp.Result, &n); err != nil {
		return fmt.Errorf("decode exists result: %w", err)
	}
	if n == 0 {
		return contractx.ErrSessionNotFound
	}
	return nil
}

func (s *UpstashRedisStore) touch(ctx context.Context, sessionID string) {
	if s.opts.ttl <= 0 {
		return
	}
	key, _ := s.opts.metaKey(sessionID)
	secs := ttlSeconds(s.opts.ttl)
	_, _ = s.exec(ctx, []any{"EXPIRE", key, secs})
	_, _ = s.exec(ctx, []any{"EXPIRE", s.opts.turnsKey(sessionID), secs})
}

func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}
