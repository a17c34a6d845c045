package orchestratornode

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

// DispatchTool runs the requested tool and appends the call and its result to the outbound sequence.
func DispatchTool(ctx context.Context, in *GraphState, tools contractx.ToolDispatcher) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Failed() || in.ToolCall == nil {
		return in, nil
	}
	in.enter(StateToolDispatch)

	call := *in.ToolCall
	args, err := ParseToolArguments(call.Arguments)
	if err != nil {
		log.Ctx(ctx).Warn().
			Err(&contractx.ToolError{Kind: contractx.ToolErrArguments, Tool: call.Name, Err: err}).
			Msg("malformed tool arguments; dispatching with none")
	}

	in.Messages = append(in.Messages, contractx.ToolCallTurn(call, args))
	result := tools.Dispatch(ctx, call.Name, args)
	in.Messages = append(in.Messages, contractx.ToolResultTurn(call, result))

	log.Ctx(ctx).Debug().
		Str("tool", call.Name).
		Bool("success", result.Success).
		Msg("tool result appended")
	return in, nil
}

// ParseToolArguments decodes the model's argument text. On failure it returns an empty map with the error.
func ParseToolArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return args, err
	}
	if decoded == nil {
		return args, fmt.Errorf("tool arguments are not a JSON object: %s", raw)
	}
	return decoded, nil
}
