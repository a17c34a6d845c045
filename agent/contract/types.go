package contract

import "encoding/json"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoiceAuto lets the model decide whether to call a tool.
const ToolChoiceAuto = "auto"

// Turn is one entry of a conversation. Committed turns are never mutated.
type Turn struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ToolCallTurn records the assistant's request for a tool so the result turn can refer to it.
func ToolCallTurn(call ToolCallRequest, args map[string]any) Turn {
	return Turn{
		Role:       RoleAssistant,
		ToolName:   call.Name,
		ToolArgs:   args,
		ToolCallID: call.ID,
	}
}

func ToolResultTurn(call ToolCallRequest, result ToolResult) Turn {
	return Turn{
		Role:       RoleTool,
		Content:    result.JSON(),
		ToolName:   call.Name,
		ToolCallID: call.ID,
	}
}

// CloneTurns returns a copy of turns that shares no slice backing with the input.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolResult struct {
	Success bool   `json:"success"`
	Payload any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON renders the result the way it is shown to the model.
func (r ToolResult) JSON() string {
	raw, err := json.Marshal(r)
	if err != nil {
		fallback, _ := json.Marshal(ToolResult{Success: false, Error: "tool result is not serializable: " + err.Error()})
		return string(fallback)
	}
	return string(raw)
}

// ToolSpec is a tool advertised to the model. Parameters is a JSON-schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ModelRequest struct {
	Messages    []Turn     `json:"messages"`
	Tools       []ToolSpec `json:"tools,omitempty"`
	ToolChoice  string     `json:"tool_choice,omitempty"`
	Temperature float64    `json:"temperature"`
}

type ModelResponse struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message *ModelMessage `json:"message"`
}

type ModelMessage struct {
	Content  string           `json:"content"`
	ToolCall *ToolCallRequest `json:"tool_call,omitempty"`
}

// FirstMessage returns the message of the first choice, or nil.
func (r *ModelResponse) FirstMessage() (*ModelMessage, bool) {
	if r == nil || len(r.Choices) == 0 {
		return nil, false
	}
	return r.Choices[0].Message, true
}
