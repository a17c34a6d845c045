package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/construction-support-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/construction-support-assistant/agent/chat"
	"github.com/tanpawarit/construction-support-assistant/agent/llm"
	promptx "github.com/tanpawarit/construction-support-assistant/agent/prompt"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
	statex "github.com/tanpawarit/construction-support-assistant/agent/state"
	"github.com/tanpawarit/construction-support-assistant/agent/tool"
	configx "github.com/tanpawarit/construction-support-assistant/pkg/config"
	openaix "github.com/tanpawarit/construction-support-assistant/pkg/openaiclient"
	postgresx "github.com/tanpawarit/construction-support-assistant/pkg/postgres"
	qstashx "github.com/tanpawarit/construction-support-assistant/pkg/qstash"
	redisx "github.com/tanpawarit/construction-support-assistant/pkg/redis"
)

type AppConfig struct {
	Addr                string        `envconfig:"ADDR" default:":5000"`
	DataDir             string        `split_words:"true" default:"."`
	LoginUser           string        `split_words:"true" default:"test"`
	LoginPassword       string        `split_words:"true" default:"test"`
	SessionBackend      string        `split_words:"true" default:"memory"`
	SessionTTL          time.Duration `split_words:"true" default:"24h"`
	InboxBackend        string        `split_words:"true" default:"file"`
	SystemPromptPath    string        `split_words:"true" default:"system_prompt.txt"`
	StrictToolArguments bool          `split_words:"true" default:"false"`
	StaticDir           string        `split_words:"true"`
}

type app struct {
	cfg     *AppConfig
	chat    *chat.Service
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context) (*app, error) {
	appCfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, err
	}
	a := &app{cfg: appCfg}

	llmCfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		return nil, err
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}
	client := openaix.NewClient(llmCfg.ClientConfig())
	if client == nil {
		return nil, errors.New("failed to initialize openai client")
	}
	model, err := llm.NewOpenAIChatModel(client, *llmCfg)
	if err != nil {
		return nil, err
	}

	manualCfg, err := configx.New[tool.ManualSearchConfig]("MANUAL_SEARCH")
	if err != nil {
		return nil, err
	}

	var publisher tool.Publisher
	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if qstashCfg.Enabled() {
		qc, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return nil, err
		}
		publisher = qc
	}

	roster := records.NewFileRoster(appCfg.DataDir)
	inbox, err := a.openInbox(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	store, err := a.openSessionStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	registry, err := tool.BuildRegistry(tool.Dependencies{
		Roster:       roster,
		Inbox:        inbox,
		ManualSearch: *manualCfg,
		Publisher:    publisher,
		Strict:       appCfg.StrictToolArguments,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.Temperature = llmCfg.Temperature
	orch, err := orchestrator.New(model, registry, orchCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.chat, err = chat.NewService(
		store,
		roster,
		promptx.NewLoader(appCfg.SystemPromptPath),
		orch,
		chat.Credentials{UserID: appCfg.LoginUser, Password: appCfg.LoginPassword},
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("model", llmCfg.Model).
		Str("session_backend", appCfg.SessionBackend).
		Str("inbox_backend", appCfg.InboxBackend).
		Bool("qstash", publisher != nil).
		Strs("tools", toolNames(registry)).
		Msg("assistant wired")
	return a, nil
}

// openInboxOnly opens the configured inbox backend without the model or tool settings.
func openInboxOnly(ctx context.Context) (*app, records.Inbox, error) {
	appCfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, nil, err
	}
	a := &app{cfg: appCfg}
	inbox, err := a.openInbox(ctx)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, inbox, nil
}

func (a *app) openInbox(ctx context.Context) (records.Inbox, error) {
	switch strings.ToLower(a.cfg.InboxBackend) {
	case "", "file":
		return records.NewFileInbox(a.cfg.DataDir), nil
	case "postgres":
		pgCfg, err := configx.New[postgresx.Config]("POSTGRES")
		if err != nil {
			return nil, err
		}
		db, err := pgCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		inbox := records.NewPostgresInbox(db)
		if err := inbox.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate inbox: %w", err)
		}
		return inbox, nil
	default:
		return nil, fmt.Errorf("unknown inbox backend %q", a.cfg.InboxBackend)
	}
}

func (a *app) openSessionStore(ctx context.Context) (statex.Store, error) {
	opts := []statex.StoreOption{statex.WithTTL(a.cfg.SessionTTL)}
	switch strings.ToLower(a.cfg.SessionBackend) {
	case "", "memory":
		return statex.NewMemoryStore(), nil
	case "redis":
		redisCfg, err := configx.New[redisx.Config]("REDIS")
		if err != nil {
			return nil, err
		}
		rdb, err := redisCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return statex.NewRedisStore(rdb, opts...)
	case "upstash":
		upstashCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		return statex.NewUpstashRedisStore(*upstashCfg, nil, opts...)
	default:
		return nil, fmt.Errorf("unknown session backend %q", a.cfg.SessionBackend)
	}
}

func toolNames(registry *tool.Registry) []string {
	specs := registry.Specs()
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names
}
