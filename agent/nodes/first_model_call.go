package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

func FirstModelCall(
	ctx context.Context,
	in *GraphState,
	model contractx.ChatModel,
	cfg CallConfig,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	msg, _, err := RetryOnEmpty(ctx, cfg.Attempts, func(ctx context.Context, attempt int) (*contractx.ModelMessage, error) {
		if attempt == 1 {
			in.enter(StateFirstModelCall)
		} else {
			in.enter(StateRetryModelCall)
		}
		return callModel(ctx, in, model, contractx.StageFirstCall, attempt, cfg.Temperature, false)
	})
	if err != nil {
		return in.fail(err), nil
	}

	if msg.ToolCall != nil {
		call := *msg.ToolCall
		in.ToolCall = &call
		return in, nil
	}

	reply := strings.TrimSpace(msg.Content)
	if reply == "" {
		reply = EmptyReplyText
	}
	in.Reply = reply
	return in, nil
}

// RouteAfterFirstCall picks the next node once the first model call has returned.
func RouteAfterFirstCall(in *GraphState) string {
	if in != nil && !in.Failed() && in.ToolCall != nil {
		return NodeDispatchTool
	}
	return NodeFinalizeReply
}
