package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

var _ contractx.ChatModel = (*OpenAIChatModel)(nil)

// OpenAIChatModel implements contract.ChatModel on the chat-completions API.
type OpenAIChatModel struct {
	client    *openaisdk.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func NewOpenAIChatModel(client *openaisdk.Client, cfg Config) (*OpenAIChatModel, error) {
	if client == nil {
		return nil, errors.New("openai client is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: llm model is required", contractx.ErrValidation)
	}
	return &OpenAIChatModel{
		client:    client,
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: cfg.MaxCompletionToken,
		timeout:   cfg.Timeout,
	}, nil
}

func (m *OpenAIChatModel) Complete(ctx context.Context, req contractx.ModelRequest) (*contractx.ModelResponse, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	messages, err := toMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(m.model),
		Messages:    messages,
		Temperature: openaisdk.Float(req.Temperature),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(m.maxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
		choice := req.ToolChoice
		if choice == "" {
			choice = contractx.ToolChoiceAuto
		}
		params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openaisdk.String(choice),
		}
		params.ParallelToolCalls = openaisdk.Bool(false)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &contractx.ModelResponse{}
	if len(resp.Choices) == 0 {
		return out, nil
	}

	msg := resp.Choices[0].Message
	converted := &contractx.ModelMessage{Content: msg.Content}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		converted.ToolCall = &contractx.ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		if len(msg.ToolCalls) > 1 {
			log.Ctx(ctx).Warn().
				Int("tool_calls", len(msg.ToolCalls)).
				Str("kept", tc.Function.Name).
				Msg("model returned several tool calls; only the first is processed")
		}
	}
	out.Choices = append(out.Choices, contractx.Choice{Message: converted})
	return out, nil
}

func toMessages(turns []contractx.Turn) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(turns))
	for i, turn := range turns {
		switch turn.Role {
		case contractx.RoleSystem:
			messages = append(messages, openaisdk.SystemMessage(turn.Content))
		case contractx.RoleUser:
			messages = append(messages, openaisdk.UserMessage(turn.Content))
		case contractx.RoleAssistant:
			if turn.ToolCallID == "" {
				messages = append(messages, openaisdk.AssistantMessage(turn.Content))
				continue
			}
			args := turn.ToolArgs
			if args == nil {
				args = map[string]any{}
			}
			argsJSON, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("marshal tool arguments at turn %d: %w", i, err)
			}
			assistantMsg := openaisdk.ChatCompletionMessage{
				Role:    "assistant",
				Content: turn.Content,
				ToolCalls: []openaisdk.ChatCompletionMessageToolCall{
					{
						ID:   turn.ToolCallID,
						Type: "function",
						Function: openaisdk.ChatCompletionMessageToolCallFunction{
							Name:      turn.ToolName,
							Arguments: string(argsJSON),
						},
					},
				},
			}
			messages = append(messages, assistantMsg.ToParam())
		case contractx.RoleTool:
			messages = append(messages, openaisdk.ToolMessage(turn.Content, turn.ToolCallID))
		default:
			return nil, fmt.Errorf("%w: unsupported role %q at turn %d", contractx.ErrValidation, turn.Role, i)
		}
	}
	return messages, nil
}

func toTools(specs []contractx.ToolSpec) []openaisdk.ChatCompletionToolParam {
	tools := make([]openaisdk.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openaisdk.ChatCompletionToolParam{
			Type: "function",
			Function: openaisdk.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openaisdk.String(spec.Description),
				Parameters:  openaisdk.FunctionParameters(spec.Parameters),
			},
		})
	}
	return tools
}
