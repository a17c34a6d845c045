package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

// BuildMessages assembles system turns, the stored log and the new user turn.
func BuildMessages(in GraphInput, tools []contractx.ToolSpec) (*GraphState, error) {
	if len(in.SystemTurns) == 0 {
		return nil, fmt.Errorf("%w: at least one system turn is required", contractx.ErrValidation)
	}

	messages := make([]contractx.Turn, 0, len(in.SystemTurns)+len(in.History)+1)
	messages = append(messages, in.SystemTurns...)
	messages = append(messages, in.History...)
	messages = append(messages, contractx.UserTurn(in.UserMessage))

	st := &GraphState{
		Messages: messages,
		Tools:    tools,
	}
	st.enter(StateStart)
	return st, nil
}
