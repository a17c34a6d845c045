package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/construction-support-assistant/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	promptx "github.com/tanpawarit/construction-support-assistant/agent/prompt"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
	statex "github.com/tanpawarit/construction-support-assistant/agent/state"
)

type Orchestrator interface {
	Reply(ctx context.Context, in orchestrator.TurnInput) orchestrator.TurnOutput
}

type Credentials struct {
	UserID   string
	Password string
}

type UserSummary struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	CompanyID    string `json:"companyId"`
	CompanyName  string `json:"companyName"`
	MachineCount int    `json:"machineCount"`
}

type ChatResult struct {
	Reply        string           `json:"reply"`
	Conversation []contractx.Turn `json:"conversation"`
}

// Service owns the session lifecycle around orchestrator turns.
type Service struct {
	store   statex.Store
	roster  records.Roster
	prompts *promptx.Loader
	orch    Orchestrator
	creds   Credentials
	locks   *sessionLocks
	newID   func() string
}

func NewService(
	store statex.Store,
	roster records.Roster,
	prompts *promptx.Loader,
	orch Orchestrator,
	creds Credentials,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if roster == nil {
		return nil, errors.New("roster is required")
	}
	if orch == nil {
		return nil, errors.New("orchestrator is required")
	}
	if prompts == nil {
		prompts = promptx.NewLoader("")
	}
	return &Service{
		store:   store,
		roster:  roster,
		prompts: prompts,
		orch:    orch,
		creds:   creds,
		locks:   newSessionLocks(),
		newID:   uuid.NewString,
	}, nil
}

// Login opens an authenticated session and returns its id.
func (s *Service) Login(ctx context.Context, userID, password string) (string, error) {
	if s.creds.UserID == "" || userID != s.creds.UserID || password != s.creds.Password {
		return "", contractx.ErrInvalidCredentials
	}

	sessionID := s.newID()
	sess, err := s.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return "", err
	}
	sess.Authenticated = true
	if err := s.store.Save(ctx, sess); err != nil {
		return "", err
	}
	log.Ctx(ctx).Info().Str("session_id", sessionID).Msg("login succeeded")
	return sessionID, nil
}

// ListUsers joins users with their company's machine count. Unreadable roster files yield an empty list.
func (s *Service) ListUsers(ctx context.Context) []UserSummary {
	users, err := s.roster.Users(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("load users failed")
		return []UserSummary{}
	}

	counts := map[string]int{}
	companies, err := s.roster.Companies(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("load machine roster failed; machine counts default to zero")
	}
	for _, c := range companies {
		counts[c.CompanyID] = len(c.Machines)
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{
			UserID:       u.UserID,
			UserName:     u.UserName,
			CompanyID:    u.CompanyID,
			CompanyName:  u.CompanyName,
			MachineCount: counts[u.CompanyID],
		})
	}
	return out
}

// SelectUser binds a customer profile to the session and starts a fresh conversation.
func (s *Service) SelectUser(ctx context.Context, sessionID, userID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: sessionId and userId required", contractx.ErrValidation)
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.authenticated(ctx, sessionID)
	if err != nil {
		return "", err
	}

	user, err := records.FindUser(ctx, s.roster, userID)
	if err != nil {
		return "", err
	}

	sess.SelectedUser = &user
	if err := s.store.Save(ctx, sess); err != nil {
		return "", err
	}
	if err := s.store.ResetConversation(ctx, sessionID); err != nil {
		return "", err
	}
	log.Ctx(ctx).Info().Str("session_id", sessionID).Str("user_id", userID).Msg("user selected")
	return fmt.Sprintf("User %s selected", userID), nil
}

// Chat runs one turn. Model and tool failures come back as reply text, never as errors.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (ChatResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return ChatResult{}, fmt.Errorf("%w: sessionId required", contractx.ErrValidation)
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.authenticated(ctx, sessionID)
	if err != nil {
		return ChatResult{}, err
	}

	logger := log.Ctx(ctx).With().Str("session_id", sessionID).Logger()
	turnCtx := logger.WithContext(context.WithoutCancel(ctx))

	out := s.orch.Reply(turnCtx, orchestrator.TurnInput{
		SystemTurns: s.prompts.SystemTurns(sess.SelectedUser),
		History:     sess.Conversation,
		UserMessage: message,
	})
	if out.Err != nil {
		logger.Warn().Err(out.Err).Msg("turn failed")
	}

	added := []contractx.Turn{contractx.UserTurn(message), contractx.AssistantTurn(out.Reply)}
	if err := s.store.AppendTurns(turnCtx, sessionID, added...); err != nil {
		return ChatResult{}, err
	}

	conversation := make([]contractx.Turn, 0, len(sess.Conversation)+len(added))
	conversation = append(conversation, sess.Conversation...)
	conversation = append(conversation, added...)
	return ChatResult{Reply: out.Reply, Conversation: conversation}, nil
}

// Reset clears the conversation. A blank session id is treated as a session that never logged in.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return contractx.ErrNotLoggedIn
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if _, err := s.authenticated(ctx, sessionID); err != nil {
		return err
	}
	return s.store.ResetConversation(ctx, sessionID)
}

// Finish removes the session whether or not it exists.
func (s *Service) Finish(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("session_id", sessionID).Msg("session finished")
	return nil
}

// authenticated loads the session, creating an unauthenticated one for unknown ids.
func (s *Service) authenticated(ctx context.Context, sessionID string) (*statex.Session, error) {
	sess, err := s.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, statex.ErrInvalidSession) {
			return nil, fmt.Errorf("%w: sessionId required", contractx.ErrValidation)
		}
		return nil, err
	}
	if !sess.Authenticated {
		return nil, contractx.ErrNotLoggedIn
	}
	return sess, nil
}
