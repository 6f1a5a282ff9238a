// Package sqs publishes reminder dispatch events to an SQS queue for
// downstream consumers such as analytics or a user-facing activity feed.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

// EventReminderDispatched is the type of every event this package publishes.
const EventReminderDispatched = "reminder.dispatched"

// Config holds SQS configuration.
type Config struct {
	Region   string
	QueueURL string
}

// Event is the JSON body of a queue message.
type Event struct {
	Type           string `json:"type"`
	LogID          string `json:"log_id"`
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	Channel        string `json:"channel"`
	Status         string `json:"status"`
	DaysBefore     int    `json:"days_before"`
	SentAt         string `json:"sent_at"`
	PublishedAt    int64  `json:"published_at"`
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer sends dispatch events to SQS.
type Producer struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
	now      func() time.Time
}

// NewProducer creates a new SQS producer.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs queue url is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("sqs producer initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return newProducer(sqs.NewFromConfig(awsCfg), cfg.QueueURL, logger), nil
}

func newProducer(client sqsAPI, queueURL string, logger *zap.Logger) *Producer {
	return &Producer{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// NewEvent builds the event for a written notification log row.
func NewEvent(entry *db.NotificationLog, userID uuid.UUID, publishedAt time.Time) Event {
	return Event{
		Type:           EventReminderDispatched,
		LogID:          entry.ID.String(),
		SubscriptionID: entry.SubscriptionID.String(),
		UserID:         userID.String(),
		Channel:        entry.Channel,
		Status:         entry.Status,
		DaysBefore:     entry.DaysBefore,
		SentAt:         entry.SentAt.UTC().Format(time.RFC3339),
		PublishedAt:    publishedAt.UnixNano(),
	}
}

// PublishDispatched sends one reminder.dispatched event. The log id is used
// as the deduplication id so FIFO queues drop redelivered publishes.
func (p *Producer) PublishDispatched(ctx context.Context, entry *db.NotificationLog, userID uuid.UUID) error {
	body, err := json.Marshal(NewEvent(entry, userID, p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventReminderDispatched),
			},
			"channel": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.Channel),
			},
		},
	}
	if isFIFO(p.queueURL) {
		input.MessageGroupId = aws.String(entry.SubscriptionID.String())
		input.MessageDeduplicationId = aws.String(entry.ID.String())
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		p.logger.Error("failed to send event to sqs",
			zap.Error(err),
			zap.String("log_id", entry.ID.String()),
		)
		return fmt.Errorf("sqs send failed: %w", err)
	}

	p.logger.Debug("dispatch event published",
		zap.String("log_id", entry.ID.String()),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}

func isFIFO(queueURL string) bool {
	return strings.HasSuffix(queueURL, ".fifo")
}
