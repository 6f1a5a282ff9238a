package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

// Sender is the unified interface for all notification channels
// Implementations: Telegram bot, Email (SES), SMS (SNS), Webhooks
type Sender interface {
	Send(ctx context.Context, msg *db.Message) error
	SupportsChannel(channel string) bool
}

// MultiSender routes messages to the sender for the user's channel
type MultiSender struct {
	senders []Sender
	logger  *zap.Logger
}

// NewMultiSender creates a router that uses multiple underlying senders
func NewMultiSender(logger *zap.Logger, senders ...Sender) *MultiSender {
	return &MultiSender{
		senders: senders,
		logger:  logger,
	}
}

// Send routes the message to the first sender supporting its channel
func (m *MultiSender) Send(ctx context.Context, msg *db.Message) error {
	for _, sender := range m.senders {
		if sender.SupportsChannel(msg.Channel) {
			m.logger.Debug("routing message to sender",
				zap.String("channel", msg.Channel),
				zap.String("subscription_id", msg.SubscriptionID.String()),
			)
			return sender.Send(ctx, msg)
		}
	}

	return fmt.Errorf("no sender found for channel: %s", msg.Channel)
}

// SupportsChannel checks if any underlying sender supports the channel
func (m *MultiSender) SupportsChannel(channel string) bool {
	for _, sender := range m.senders {
		if sender.SupportsChannel(channel) {
			return true
		}
	}
	return false
}

// LogSender only logs messages. It stands in for channels without credentials
// in development.
type LogSender struct {
	channels map[string]bool
	logger   *zap.Logger
}

// NewLogSender creates a LogSender for the given channels, or every known
// channel when none are given.
func NewLogSender(logger *zap.Logger, channels ...string) *LogSender {
	if len(channels) == 0 {
		channels = []string{db.ChannelTelegram, db.ChannelEmail, db.ChannelSMS, db.ChannelWebhook}
	}

	set := make(map[string]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}

	return &LogSender{channels: set, logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg *db.Message) error {
	s.logger.Info("logging reminder (development mode)",
		zap.String("subscription_id", msg.SubscriptionID.String()),
		zap.String("user_id", msg.UserID.String()),
		zap.String("channel", msg.Channel),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (s *LogSender) SupportsChannel(channel string) bool {
	return s.channels[channel]
}

// Notifier adapts a Sender to the boolean contract of reminder runs: any
// send error, including a timeout or an open circuit, is reported as false.
type Notifier struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
}

// NewNotifier wraps sender. timeout bounds each delivery attempt.
func NewNotifier(sender Sender, timeout time.Duration, logger *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Notifier{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify sends msg and reports whether it was delivered
func (n *Notifier) Notify(ctx context.Context, msg *db.Message) bool {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Warn("failed to deliver reminder",
			zap.String("subscription_id", msg.SubscriptionID.String()),
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return false
	}

	return true
}
