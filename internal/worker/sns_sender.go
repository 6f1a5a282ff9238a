package worker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends SMS reminders via AWS SNS
type SNSSender struct {
	client snsAPI
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSSender creates a new SNS sender for SMS reminders
func NewSNSSender(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSSender{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

// Send texts the reminder to the user's phone number
func (s *SNSSender) Send(ctx context.Context, msg *db.Message) error {
	if msg.Channel != db.ChannelSMS {
		return fmt.Errorf("SNS sender only supports SMS, got: %s", msg.Channel)
	}
	if msg.Address == "" {
		return fmt.Errorf("SMS message missing phone number")
	}
	if msg.Text == "" {
		return fmt.Errorf("SMS message is empty")
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(msg.Address),
		Message:     aws.String(msg.Text),
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	s.logger.Info("reminder sent via SNS",
		zap.String("subscription_id", msg.SubscriptionID.String()),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}

// SupportsChannel checks if this sender supports the SMS channel
func (s *SNSSender) SupportsChannel(channel string) bool {
	return channel == db.ChannelSMS
}
