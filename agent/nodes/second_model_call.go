package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

// SecondModelCall asks for the final answer after a tool result. A second tool call is never dispatched.
func SecondModelCall(
	ctx context.Context,
	in *GraphState,
	model contractx.ChatModel,
	cfg CallConfig,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Failed() {
		return in, nil
	}
	in.ToolCall = nil

	msg, _, err := RetryOnEmpty(ctx, cfg.Attempts, func(ctx context.Context, attempt int) (*contractx.ModelMessage, error) {
		if attempt == 1 {
			in.enter(StateSecondModelCall)
		} else {
			in.enter(StateRetryModelCall)
		}
		return callModel(ctx, in, model, contractx.StageSecondCall, attempt, cfg.Temperature, true)
	})
	if err != nil {
		return in.fail(err), nil
	}

	if msg.ToolCall != nil {
		log.Ctx(ctx).Warn().
			Str("tool", msg.ToolCall.Name).
			Msg("chained tool call ignored; using message content as the answer")
	}
	in.Reply = strings.TrimSpace(msg.Content)
	return in, nil
}
