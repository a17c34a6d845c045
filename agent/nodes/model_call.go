package orchestratornode

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

type CallConfig struct {
	Temperature float64
	Attempts    int
}

// callModel issues one attempt and classifies an unusable response as EmptyResponseError.
func callModel(
	ctx context.Context,
	in *GraphState,
	model contractx.ChatModel,
	stage contractx.Stage,
	attempt int,
	temperature float64,
	requireContent bool,
) (*contractx.ModelMessage, error) {
	in.ModelCalls++
	logger := log.Ctx(ctx).With().Str("stage", string(stage)).Int("attempt", attempt).Logger()
	logger.Debug().Int("messages", len(in.Messages)).Msg("calling model")

	resp, err := model.Complete(ctx, contractx.ModelRequest{
		Messages:    contractx.CloneTurns(in.Messages),
		Tools:       in.Tools,
		ToolChoice:  contractx.ToolChoiceAuto,
		Temperature: temperature,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("model call failed")
		return nil, &contractx.ProviderError{Stage: stage, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		logger.Warn().Msg("model returned no choices")
		return nil, &contractx.EmptyResponseError{Stage: stage, Reason: contractx.EmptyNoChoices, Attempts: attempt}
	}
	msg, _ := resp.FirstMessage()
	if msg == nil {
		logger.Warn().Msg("model returned a choice without a message")
		return nil, &contractx.EmptyResponseError{Stage: stage, Reason: contractx.EmptyNilMessage, Attempts: attempt}
	}
	if requireContent && strings.TrimSpace(msg.Content) == "" {
		logger.Warn().Msg("model returned empty content")
		return nil, &contractx.EmptyResponseError{Stage: stage, Reason: contractx.EmptyNoContent, Attempts: attempt}
	}
	return msg, nil
}
