package orchestrator

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	nodex "github.com/tanpawarit/construction-support-assistant/agent/nodes"
)

const (
	DefaultTemperature        = 0.7
	defaultFirstCallAttempts  = 1
	defaultSecondCallAttempts = 2
)

// Non-positive attempt counts fall back to one first call and two second calls.
type Config struct {
	Temperature        float64
	FirstCallAttempts  int
	SecondCallAttempts int
}

func DefaultConfig() Config {
	return Config{
		Temperature:        DefaultTemperature,
		FirstCallAttempts:  defaultFirstCallAttempts,
		SecondCallAttempts: defaultSecondCallAttempts,
	}
}

type TurnInput struct {
	SystemTurns []contractx.Turn
	History     []contractx.Turn
	UserMessage string
}

// TurnOutput always carries a reply; Err is set when the turn failed and Reply holds its rendering.
type TurnOutput struct {
	Reply      string
	Err        error
	Messages   []contractx.Turn
	Path       []nodex.State
	ModelCalls int
}

// Orchestrator runs one function-calling turn against the model.
type Orchestrator struct {
	model contractx.ChatModel
	tools contractx.ToolDispatcher

	firstCall  nodex.CallConfig
	secondCall nodex.CallConfig

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

func New(model contractx.ChatModel, tools contractx.ToolDispatcher, cfg Config) (*Orchestrator, error) {
	if model == nil {
		return nil, errors.New("chat model is required")
	}
	if tools == nil {
		return nil, errors.New("tool dispatcher is required")
	}

	first := cfg.FirstCallAttempts
	if first <= 0 {
		first = defaultFirstCallAttempts
	}
	second := cfg.SecondCallAttempts
	if second <= 0 {
		second = defaultSecondCallAttempts
	}

	o := &Orchestrator{
		model:      model,
		tools:      tools,
		firstCall:  nodex.CallConfig{Temperature: cfg.Temperature, Attempts: first},
		secondCall: nodex.CallConfig{Temperature: cfg.Temperature, Attempts: second},
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner
	return o, nil
}

// Reply never returns an error: every failure path is rendered into TurnOutput.Reply.
func (o *Orchestrator) Reply(ctx context.Context, in TurnInput) TurnOutput {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SystemTurns: contractx.CloneTurns(in.SystemTurns),
		History:     contractx.CloneTurns(in.History),
		UserMessage: in.UserMessage,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("orchestrator graph failed")
		return TurnOutput{
			Reply: contractx.RenderError(err),
			Err:   err,
			Path:  []nodex.State{nodex.StateFailed},
		}
	}

	log.Ctx(ctx).Debug().
		Int("model_calls", out.ModelCalls).
		Interface("path", out.Path).
		Bool("failed", out.Err != nil).
		Msg("turn finished")

	return TurnOutput{
		Reply:      out.Reply,
		Err:        out.Err,
		Messages:   out.Messages,
		Path:       out.Path,
		ModelCalls: out.ModelCalls,
	}
}
