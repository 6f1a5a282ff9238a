package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func testEntry() *db.NotificationLog {
	return &db.NotificationLog{
		ID:             uuid.New(),
		SubscriptionID: uuid.New(),
		SentAt:         time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC),
		Channel:        db.ChannelTelegram,
		Status:         db.StatusSent,
		DaysBefore:     3,
	}
}

func TestPublishDispatched(t *testing.T) {
	client := &fakeSQS{}
	p := newProducer(client, "https://sqs.us-east-1.amazonaws.com/123/reminders", zap.NewNop())
	p.now = func() time.Time { return time.Unix(1000, 0) }

	entry := testEntry()
	userID := uuid.New()

	if err := p.PublishDispatched(context.Background(), entry, userID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(client.inputs))
	}

	input := client.inputs[0]
	var event Event
	if err := json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &event); err != nil {
		t.Fatalf("invalid body: %v", err)
	}

	want := Event{
		Type:           EventReminderDispatched,
		LogID:          entry.ID.String(),
		SubscriptionID: entry.SubscriptionID.String(),
		UserID:         userID.String(),
		Channel:        db.ChannelTelegram,
		Status:         db.StatusSent,
		DaysBefore:     3,
		SentAt:         "2026-10-19T09:00:00Z",
		PublishedAt:    time.Unix(1000, 0).UnixNano(),
	}
	if event != want {
		t.Errorf("got %+v, want %+v", event, want)
	}

	if got := aws.ToString(input.MessageAttributes["event_type"].StringValue); got != EventReminderDispatched {
		t.Errorf("event_type attribute = %q", got)
	}
	if input.MessageGroupId != nil || input.MessageDeduplicationId != nil {
		t.Error("standard queues must not carry FIFO fields")
	}
}

func TestPublishDispatched_FIFO(t *testing.T) {
	client := &fakeSQS{}
	p := newProducer(client, "https://sqs.us-east-1.amazonaws.com/123/reminders.fifo", zap.NewNop())

	entry := testEntry()
	if err := p.PublishDispatched(context.Background(), entry, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := client.inputs[0]
	if aws.ToString(input.MessageDeduplicationId) != entry.ID.String() {
		t.Errorf("dedup id = %q", aws.ToString(input.MessageDeduplicationId))
	}
	if aws.ToString(input.MessageGroupId) != entry.SubscriptionID.String() {
		t.Errorf("group id = %q", aws.ToString(input.MessageGroupId))
	}
}

func TestPublishDispatched_Error(t *testing.T) {
	client := &fakeSQS{err: errors.New("access denied")}
	p := newProducer(client, "https://sqs.us-east-1.amazonaws.com/123/reminders", zap.NewNop())

	if err := p.PublishDispatched(context.Background(), testEntry(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewProducer_RequiresQueue(t *testing.T) {
	if _, err := NewProducer(context.Background(), Config{Region: "us-east-1"}, zap.NewNop()); err == nil {
		t.Fatal("expected error without queue url")
	}
}

func TestIsFIFO(t *testing.T) {
	tests := map[string]bool{
		"https://sqs.us-east-1.amazonaws.com/123/reminders.fifo": true,
		"https://sqs.us-east-1.amazonaws.com/123/reminders":      false,
		"https://sqs.us-east-1.amazonaws.com/123/fifo":           false,
		"": false,
	}

	for url, want := range tests {
		if got := isFIFO(url); got != want {
			t.Errorf("isFIFO(%q) = %v, want %v", url, got, want)
		}
	}
}
