package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testKey = "0123456789abcdef0123456789abcdef"

// chdirTemp runs the test in an empty directory so no stray .env is read
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func mustLoad(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENCRYPTION_KEY", testKey)

	cfg := mustLoad(t)

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Timezone != "UTC" || cfg.Location() != time.UTC {
		t.Errorf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.ReminderInterval != 24*time.Hour {
		t.Errorf("ReminderInterval = %s", cfg.ReminderInterval)
	}
	if cfg.ReminderRunAt != "09:00" {
		t.Errorf("ReminderRunAt = %q", cfg.ReminderRunAt)
	}
	if cfg.ReminderSendDelay != 100*time.Millisecond {
		t.Errorf("ReminderSendDelay = %s", cfg.ReminderSendDelay)
	}
	if cfg.ReminderLeaseTTL != 30*time.Minute {
		t.Errorf("ReminderLeaseTTL = %s", cfg.ReminderLeaseTTL)
	}
	if cfg.TelegramAPIURL != "https://api.telegram.org" {
		t.Errorf("TelegramAPIURL = %q", cfg.TelegramAPIURL)
	}
	if cfg.SQSRegion != cfg.AWSRegion {
		t.Errorf("SQSRegion = %q, want AWS region %q", cfg.SQSRegion, cfg.AWSRegion)
	}
	if cfg.RedisEnabled() {
		t.Error("redis should be disabled without REDIS_HOST")
	}
	if cfg.ReminderRunOnStart {
		t.Error("ReminderRunOnStart should default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("PORT", "9090")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("REMINDER_INTERVAL", "12h")
	t.Setenv("REMINDER_SEND_DELAY", "250ms")
	t.Setenv("REMINDER_RUN_ON_START", "true")
	t.Setenv("WEBHOOK_TIMEOUT", "5")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("SNS_REGION", "eu-west-1")

	cfg := mustLoad(t)

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.ReminderInterval != 12*time.Hour {
		t.Errorf("ReminderInterval = %s", cfg.ReminderInterval)
	}
	if cfg.ReminderSendDelay != 250*time.Millisecond {
		t.Errorf("ReminderSendDelay = %s", cfg.ReminderSendDelay)
	}
	if !cfg.ReminderRunOnStart {
		t.Error("ReminderRunOnStart should be true")
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Errorf("WebhookTimeout = %s, want bare number read as seconds", cfg.WebhookTimeout)
	}
	if !cfg.RedisEnabled() {
		t.Error("redis should be enabled with REDIS_HOST")
	}
	if cfg.SNSRegion != "eu-west-1" {
		t.Errorf("SNSRegion = %q", cfg.SNSRegion)
	}
}

func TestLoad_EmptyRunAtStartsImmediately(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENCRYPTION_KEY", testKey)
	t.Setenv("REMINDER_RUN_AT", "")

	if cfg := mustLoad(t); cfg.ReminderRunAt != "" {
		t.Errorf("ReminderRunAt = %q, want empty", cfg.ReminderRunAt)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	body := []byte("ENCRYPTION_KEY=" + testKey + "\nDB_NAME=fromfile\n")
	if err := os.WriteFile(filepath.Join(dir, ".env"), body, 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	// godotenv sets variables for the process; t.Setenv restores them afterwards
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")
	t.Setenv("DB_NAME", "")
	os.Unsetenv("DB_NAME")

	cfg := mustLoad(t)
	if cfg.EncryptionKey != testKey {
		t.Errorf("EncryptionKey not read from .env")
	}
	if cfg.DBName != "fromfile" {
		t.Errorf("DBName = %q, want fromfile", cfg.DBName)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing key", map[string]string{}},
		{"short key", map[string]string{"ENCRYPTION_KEY": "too-short"}},
		{"bad port", map[string]string{"ENCRYPTION_KEY": testKey, "PORT": "eighty"}},
		{"bad interval", map[string]string{"ENCRYPTION_KEY": testKey, "REMINDER_INTERVAL": "daily"}},
		{"zero interval", map[string]string{"ENCRYPTION_KEY": testKey, "REMINDER_INTERVAL": "0s"}},
		{"bad bool", map[string]string{"ENCRYPTION_KEY": testKey, "REMINDER_RUN_ON_START": "maybe"}},
		{"bad timezone", map[string]string{"ENCRYPTION_KEY": testKey, "TIMEZONE": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv("ENCRYPTION_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_EncryptionKey(t *testing.T) {
	cfg := &Config{EncryptionKey: "short", Timezone: "UTC", ReminderInterval: time.Hour}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidEncryptionKey) {
		t.Errorf("expected ErrInvalidEncryptionKey, got %v", err)
	}

	cfg.EncryptionKey = testKey
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
