package tool

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
	"github.com/tanpawarit/construction-support-assistant/agent/records"
	qstashx "github.com/tanpawarit/construction-support-assistant/pkg/qstash"
)

const ToolNotifyStaff = "notifyStaff"

// Publisher fans delivered notifications out to an external queue.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) (*qstashx.PublishResponse, error)
}

type RecipientFailure struct {
	RecipientUserID string `json:"recipientUserId"`
	Error           string `json:"error"`
}

type NotifyResult struct {
	Delivered []string           `json:"delivered"`
	Failed    []RecipientFailure `json:"failed"`
}

// StaffNotificationEvent is the body published per delivered recipient.
type StaffNotificationEvent struct {
	RecipientUserID string               `json:"recipientUserId"`
	Message         records.InboxMessage `json:"message"`
}

type StaffNotifier struct {
	inbox     records.Inbox
	publisher Publisher
}

// NewStaffNotifier accepts a nil publisher when no queue is configured.
func NewStaffNotifier(inbox records.Inbox, publisher Publisher) *StaffNotifier {
	return &StaffNotifier{inbox: inbox, publisher: publisher}
}

func (n *StaffNotifier) Execute(ctx context.Context, _ string, args map[string]any) (contractx.ToolResult, error) {
	msg := records.InboxMessage{
		Title:            stringArg(args, "title"),
		MessageContent:   stringArg(args, "messageContent"),
		CustomerID:       stringArg(args, "customerId"),
		CustomerName:     stringArg(args, "customerName"),
		CustomerUserID:   stringArg(args, "customerUserId"),
		CustomerUserName: stringArg(args, "customerUserName"),
		FromUserID:       stringArg(args, "userId"),
	}
	result := n.Notify(ctx, msg, stringSliceArg(args, "recipientUserIds"))

	out := contractx.ToolResult{
		Success: len(result.Failed) == 0,
		Payload: result,
	}
	if !out.Success {
		out.Error = failureSummary(result.Failed)
	}
	return out, nil
}

// Notify delivers msg once to each distinct recipient, in first-seen order.
func (n *StaffNotifier) Notify(ctx context.Context, msg records.InboxMessage, recipients []string) NotifyResult {
	result := NotifyResult{Delivered: []string{}, Failed: []RecipientFailure{}}
	logger := log.Ctx(ctx).With().Str("tool", ToolNotifyStaff).Logger()

	seen := make(map[string]bool, len(recipients))
	for _, recipient := range recipients {
		if seen[recipient] {
			continue
		}
		seen[recipient] = true

		stored, err := n.inbox.Append(ctx, recipient, msg)
		if err != nil {
			logger.Warn().Err(err).Str("recipient", recipient).Msg("staff notification failed")
			result.Failed = append(result.Failed, RecipientFailure{RecipientUserID: recipient, Error: err.Error()})
			continue
		}
		result.Delivered = append(result.Delivered, recipient)
		n.publish(ctx, recipient, stored)
	}
	return result
}

func (n *StaffNotifier) publish(ctx context.Context, recipient string, msg records.InboxMessage) {
	if n.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := n.publisher.PublishJSON(pubCtx, StaffNotificationEvent{RecipientUserID: recipient, Message: msg})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("recipient", recipient).Msg("publish staff notification failed")
		return
	}
	log.Ctx(ctx).Debug().Str("recipient", recipient).Str("message_id", resp.MessageID).Msg("staff notification published")
}

func failureSummary(failed []RecipientFailure) string {
	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		parts = append(parts, f.RecipientUserID+": "+f.Error)
	}
	return "notification failed for " + strings.Join(parts, "; ")
}
