package orchestratornode

import (
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

type State string

const (
	StateStart           State = "start"
	StateFirstModelCall  State = "first_model_call"
	StateToolDispatch    State = "tool_dispatch"
	StateSecondModelCall State = "second_model_call"
	StateRetryModelCall  State = "retry_model_call"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Node names of the orchestrator graph.
const (
	NodeBuildMessages   = "build_messages"
	NodeFirstModelCall  = "first_model_call"
	NodeDispatchTool    = "dispatch_tool"
	NodeSecondModelCall = "second_model_call"
	NodeFinalizeReply   = "finalize_reply"
)

const EmptyReplyText = "[Empty response]"

type GraphInput struct {
	SystemTurns []contractx.Turn
	History     []contractx.Turn
	UserMessage string
}

// GraphState travels through every node. Turn failures are recorded in Err, not returned.
type GraphState struct {
	Messages   []contractx.Turn
	Tools      []contractx.ToolSpec
	ToolCall   *contractx.ToolCallRequest
	Reply      string
	Err        error
	Path       []State
	ModelCalls int
}

type GraphOutput struct {
	Reply      string
	Err        error
	Messages   []contractx.Turn
	Path       []State
	ModelCalls int
}

func (s *GraphState) enter(state State) {
	s.Path = append(s.Path, state)
}

func (s *GraphState) fail(err error) *GraphState {
	s.Err = err
	s.ToolCall = nil
	return s
}

// Failed reports whether an earlier node already ended the turn.
func (s *GraphState) Failed() bool {
	return s != nil && s.Err != nil
}
