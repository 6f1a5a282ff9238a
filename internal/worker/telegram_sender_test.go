package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/db"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) (*TelegramSender, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sender, err := NewTelegramSender(TelegramConfig{
		Token:      "123:secret",
		APIURL:     server.URL,
		Attempts:   3,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramSender: %v", err)
	}
	return sender, server
}

func TestNewTelegramSender_RequiresToken(t *testing.T) {
	if _, err := NewTelegramSender(TelegramConfig{}, zap.NewNop()); !errors.Is(err, ErrMissingBotToken) {
		t.Fatalf("expected ErrMissingBotToken, got %v", err)
	}
}

func TestTelegramSender_Send(t *testing.T) {
	var got telegramRequest
	var path string

	sender, _ := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	msg := testMessage(db.ChannelTelegram, "987654")
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/bot123:secret/sendMessage" {
		t.Errorf("unexpected path %q", path)
	}
	if got.ChatID != "987654" || got.Text != msg.Text {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestTelegramSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	sender, _ := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	if err := sender.Send(context.Background(), testMessage(db.ChannelTelegram, "1")); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestTelegramSender_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	sender, _ := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := sender.Send(context.Background(), testMessage(db.ChannelTelegram, "1"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected api description in error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestTelegramSender_ErrorDoesNotLeakToken(t *testing.T) {
	sender, server := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	err := sender.Send(context.Background(), testMessage(db.ChannelTelegram, "1"))
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("error leaks bot token: %v", err)
	}
}

func TestTelegramSender_Validation(t *testing.T) {
	sender, _ := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if err := sender.Send(context.Background(), testMessage(db.ChannelEmail, "1")); err == nil {
		t.Error("expected wrong channel error")
	}
	if err := sender.Send(context.Background(), testMessage(db.ChannelTelegram, "")); err == nil {
		t.Error("expected missing chat id error")
	}
	if !sender.SupportsChannel(db.ChannelTelegram) || sender.SupportsChannel(db.ChannelSMS) {
		t.Error("unexpected SupportsChannel result")
	}
}
