package tool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tanpawarit/construction-support-assistant/agent/records"
	qstashx "github.com/tanpawarit/construction-support-assistant/pkg/qstash"
)

type fakeInbox struct {
	mu       sync.Mutex
	failFor  map[string]bool
	messages map[string][]records.InboxMessage
}

func newFakeInbox(failFor ...string) *fakeInbox {
	f := &fakeInbox{failFor: map[string]bool{}, messages: map[string][]records.InboxMessage{}}
	for _, id := range failFor {
		f.failFor[id] = true
	}
	return f
}

func (f *fakeInbox) Append(_ context.Context, staffID string, msg records.InboxMessage) (records.InboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[staffID] {
		return records.InboxMessage{}, errors.New("inbox unavailable")
	}
	f.messages[staffID] = append(f.messages[staffID], msg)
	return msg, nil
}

func (f *fakeInbox) List(_ context.Context, staffID string) ([]records.InboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[staffID], nil
}

type fakePublisher struct {
	bodies []any
	err    error
}

func (p *fakePublisher) PublishJSON(_ context.Context, body any) (*qstashx.PublishResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.bodies = append(p.bodies, body)
	return &qstashx.PublishResponse{MessageID: "msg_1"}, nil
}

func notifyArgs(recipients ...any) map[string]any {
	return map[string]any{
		"userId":           "U001",
		"title":            "点検依頼",
		"messageContent":   "PC200-8 500001 の点検をお願いします",
		"customerId":       "C001",
		"customerName":     "山田建設",
		"customerUserId":   "U001",
		"customerUserName": "山田太郎",
		"recipientUserIds": recipients,
	}
}

func TestNotifyDeliversToEveryRecipient(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox()
	pub := &fakePublisher{}
	out, err := NewStaffNotifier(inbox, pub).Execute(context.Background(), ToolNotifyStaff, notifyArgs("S001", "S002"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	result := out.Payload.(NotifyResult)
	if len(result.Delivered) != 2 || len(result.Failed) != 0 {
		t.Fatalf("unexpected outcome: %+v", result)
	}
	if len(inbox.messages) != 2 {
		t.Fatalf("expected exactly 2 inboxes written, got %d", len(inbox.messages))
	}
	for _, id := range []string{"S001", "S002"} {
		msgs, _ := inbox.List(context.Background(), id)
		if len(msgs) != 1 || msgs[0].FromUserID != "U001" || msgs[0].CustomerName != "山田建設" {
			t.Fatalf("inbox %s = %+v", id, msgs)
		}
	}
	if len(pub.bodies) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.bodies))
	}
}

func TestNotifyDuplicateRecipientsDeliverOnce(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox()
	pub := &fakePublisher{}
	out, err := NewStaffNotifier(inbox, pub).Execute(context.Background(), ToolNotifyStaff, notifyArgs("S002", "S001", "S002", "S001"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	result := out.Payload.(NotifyResult)
	if len(result.Delivered) != 2 || result.Delivered[0] != "S002" || result.Delivered[1] != "S001" {
		t.Fatalf("delivered = %v, want [S002 S001]", result.Delivered)
	}
	for _, id := range []string{"S001", "S002"} {
		if got := len(inbox.messages[id]); got != 1 {
			t.Fatalf("inbox %s has %d records, want 1", id, got)
		}
	}
	if len(pub.bodies) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.bodies))
	}
}

func TestNotifyPartialFailureContinues(t *testing.T) {
	t.Parallel()

	inbox := newFakeInbox("S001")
	out, err := NewStaffNotifier(inbox, nil).Execute(context.Background(), ToolNotifyStaff, notifyArgs("S001", "S002"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Success {
		t.Fatal("expected overall failure")
	}
	result := out.Payload.(NotifyResult)
	if len(result.Delivered) != 1 || result.Delivered[0] != "S002" {
		t.Fatalf("delivered = %v", result.Delivered)
	}
	if len(result.Failed) != 1 || result.Failed[0].RecipientUserID != "S001" {
		t.Fatalf("failed = %v", result.Failed)
	}
	if out.Error == "" {
		t.Fatal("expected error summary")
	}
}

func TestNotifyPublishFailureDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	out, err := NewStaffNotifier(newFakeInbox(), &fakePublisher{err: errors.New("queue down")}).
		Execute(context.Background(), ToolNotifyStaff, notifyArgs("S001"))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
}

func TestNotifyWithNoRecipients(t *testing.T) {
	t.Parallel()

	out, err := NewStaffNotifier(newFakeInbox(), nil).Execute(context.Background(), ToolNotifyStaff, map[string]any{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	result := out.Payload.(NotifyResult)
	if !out.Success || len(result.Delivered) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
