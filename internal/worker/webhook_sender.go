package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

// WebhookSender posts reminders as JSON to the user's webhook URL
type WebhookSender struct {
	client *http.Client
	logger *zap.Logger
}

type WebhookConfig struct {
	DefaultTimeout time.Duration
}

// WebhookPayload is the JSON body posted to the user's endpoint
type WebhookPayload struct {
	Event          string `json:"event"`
	SubscriptionID string `json:"subscription_id"`
	Subject        string `json:"subject"`
	Text           string `json:"text"`
	SentAt         string `json:"sent_at"`
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(logger *zap.Logger, cfg WebhookConfig) *WebhookSender {
	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Send posts the reminder to msg.Address
func (s *WebhookSender) Send(ctx context.Context, msg *db.Message) error {
	if msg.Channel != db.ChannelWebhook {
		return fmt.Errorf("webhook sender only supports webhooks, got: %s", msg.Channel)
	}

	target, err := url.Parse(msg.Address)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return fmt.Errorf("webhook address is not an http(s) url")
	}

	body, err := json.Marshal(WebhookPayload{
		Event:          "reminder.due",
		SubscriptionID: msg.SubscriptionID.String(),
		Subject:        msg.Subject,
		Text:           msg.Text,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Subtrack/1.0")
	req.Header.Set("X-Subtrack-Subscription-ID", msg.SubscriptionID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	s.logger.Info("webhook delivered successfully",
		zap.String("subscription_id", msg.SubscriptionID.String()),
		zap.String("host", target.Host),
		zap.Int("status_code", resp.StatusCode),
	)

	return nil
}

// SupportsChannel checks if this sender supports webhooks
func (s *WebhookSender) SupportsChannel(channel string) bool {
	return channel == db.ChannelWebhook
}
