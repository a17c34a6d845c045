package contract

import "context"

// ChatModel is the opaque language-model service.
type ChatModel interface {
	Complete(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// ToolDispatcher advertises the tool set and runs a tool by name. Dispatch never fails;
// every problem is folded into the returned ToolResult.
type ToolDispatcher interface {
	Specs() []ToolSpec
	Dispatch(ctx context.Context, name string, args map[string]any) ToolResult
}
