// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EncryptionKeyLength is the exact length ENCRYPTION_KEY must have.
const EncryptionKeyLength = 32

var ErrInvalidEncryptionKey = errors.New("ENCRYPTION_KEY must be exactly 32 characters")

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis is optional; an empty host disables the run lease and API rate limit
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Account name encryption
	EncryptionKey string

	// Reminder scheduling
	Timezone           string
	ReminderInterval   time.Duration
	ReminderRunAt      string // "HH:MM" in Timezone
	ReminderSendDelay  time.Duration
	ReminderRunOnStart bool
	ReminderLeaseTTL   time.Duration

	// Telegram
	TelegramBotToken string
	TelegramAPIURL   string

	// Dispatch events; an empty queue URL disables publishing
	SQSRegion   string
	SQSQueueURL string

	// AWS Services
	AWSRegion    string
	SESFromEmail string // empty disables the email channel
	SNSRegion    string
	SNSEnabled   bool

	WebhookTimeout time.Duration

	// RateLimit is requests per minute per client on the API
	RateLimit int
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "subtrack",
		DBName:    "subtrack",
		DBSSLMode: "disable",

		RedisPort: 6379,

		Timezone:          "UTC",
		ReminderInterval:  24 * time.Hour,
		ReminderRunAt:     "09:00",
		ReminderSendDelay: 100 * time.Millisecond,
		ReminderLeaseTTL:  30 * time.Minute,

		TelegramAPIURL: "https://api.telegram.org",

		AWSRegion:      "us-east-1",
		WebhookTimeout: 30 * time.Second,
		RateLimit:      30,
	}

	var err error

	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}
	if cfg.DBPort, err = envInt("DB_PORT", cfg.DBPort); err != nil {
		return nil, err
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DBName = name
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	cfg.RedisHost = os.Getenv("REDIS_HOST")
	if cfg.RedisPort, err = envInt("REDIS_PORT", cfg.RedisPort); err != nil {
		return nil, err
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisDB, err = envInt("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}

	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")

	// Reminder config
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
	if cfg.ReminderInterval, err = envDuration("REMINDER_INTERVAL", cfg.ReminderInterval); err != nil {
		return nil, err
	}
	if runAt, ok := os.LookupEnv("REMINDER_RUN_AT"); ok {
		cfg.ReminderRunAt = runAt
	}
	if cfg.ReminderSendDelay, err = envDuration("REMINDER_SEND_DELAY", cfg.ReminderSendDelay); err != nil {
		return nil, err
	}
	if cfg.ReminderRunOnStart, err = envBool("REMINDER_RUN_ON_START", false); err != nil {
		return nil, err
	}
	if cfg.ReminderLeaseTTL, err = envDuration("REMINDER_LEASE_TTL", cfg.ReminderLeaseTTL); err != nil {
		return nil, err
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if url := os.Getenv("TELEGRAM_API_URL"); url != "" {
		cfg.TelegramAPIURL = url
	}

	// AWS config
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}
	cfg.SESFromEmail = os.Getenv("SES_FROM_EMAIL")

	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}
	cfg.SQSQueueURL = os.Getenv("SQS_QUEUE_URL")

	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}
	if cfg.SNSEnabled, err = envBool("SNS_ENABLED", false); err != nil {
		return nil, err
	}

	if cfg.WebhookTimeout, err = envDuration("WEBHOOK_TIMEOUT", cfg.WebhookTimeout); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envInt("RATE_LIMIT", cfg.RateLimit); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if len(c.EncryptionKey) != EncryptionKeyLength {
		return ErrInvalidEncryptionKey
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	if c.ReminderSendDelay < 0 {
		return fmt.Errorf("REMINDER_SEND_DELAY must not be negative")
	}
	return nil
}

// Location returns the zone reminder dates are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisEnabled reports whether a Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
