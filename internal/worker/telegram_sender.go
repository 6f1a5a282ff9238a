package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

// ErrMissingBotToken is returned when the Telegram sender is built without a token.
var ErrMissingBotToken = errors.New("telegram bot token is required")

// TelegramConfig configures the Bot API sender
type TelegramConfig struct {
	Token      string
	APIURL     string        // defaults to https://api.telegram.org
	Timeout    time.Duration // per request
	Attempts   uint
	RetryDelay time.Duration
}

// TelegramSender delivers reminders with the Bot API sendMessage method.
// The user's notify address is the chat id.
type TelegramSender struct {
	client   *http.Client
	endpoint string
	config   TelegramConfig
	logger   *zap.Logger
}

type telegramRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// telegramError is a non-OK Bot API answer
type telegramError struct {
	StatusCode  int
	Description string
}

func (e *telegramError) Error() string {
	return fmt.Sprintf("telegram api returned %d: %s", e.StatusCode, e.Description)
}

func (e *telegramError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewTelegramSender creates a new Telegram sender
func NewTelegramSender(cfg TelegramConfig, logger *zap.Logger) (*TelegramSender, error) {
	if cfg.Token == "" {
		return nil, ErrMissingBotToken
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &TelegramSender{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.Token + "/sendMessage",
		config:   cfg,
		logger:   logger,
	}, nil
}

// Send posts the message text to the chat, retrying transport errors,
// rate limiting and server errors
func (s *TelegramSender) Send(ctx context.Context, msg *db.Message) error {
	if msg.Channel != db.ChannelTelegram {
		return fmt.Errorf("telegram sender only supports telegram, got: %s", msg.Channel)
	}
	if msg.Address == "" {
		return fmt.Errorf("telegram message missing chat id")
	}

	body, err := json.Marshal(telegramRequest{
		ChatID:                msg.Address,
		Text:                  msg.Text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram request: %w", err)
	}

	err = retry.Do(
		func() error {
			return s.post(ctx, body)
		},
		retry.Attempts(s.config.Attempts),
		retry.Delay(s.config.RetryDelay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(s.config.RetryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("retrying telegram send",
				zap.Uint("attempt", n),
				zap.String("subscription_id", msg.SubscriptionID.String()),
				zap.Error(err),
			)
		}),
		retry.RetryIf(func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			var apiErr *telegramError
			if errors.As(err, &apiErr) {
				return apiErr.retryable()
			}
			return true
		}),
	)
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}

	s.logger.Info("reminder sent via telegram",
		zap.String("subscription_id", msg.SubscriptionID.String()),
	)
	return nil
}

func (s *TelegramSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to create telegram request: %w", redactURL(err)))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", redactURL(err))
	}
	defer resp.Body.Close()

	var out telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("invalid telegram response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !out.OK {
		return &telegramError{StatusCode: resp.StatusCode, Description: out.Description}
	}

	return nil
}

// redactURL drops the request URL, which embeds the bot token, from transport errors
func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// SupportsChannel checks if this sender supports the telegram channel
func (s *TelegramSender) SupportsChannel(channel string) bool {
	return channel == db.ChannelTelegram
}
