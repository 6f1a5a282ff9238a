package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/cryptox"
)

// User is the subset of an account the reminder engine reads
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	NotifyChannel string    `json:"notify_channel"`
	NotifyAddress *string   `json:"notify_address,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// KeyID is the identifier used to derive the user's field-encryption key
func (u *User) KeyID() string {
	return u.ID.String()
}

// Subscription is a recurring payment tracked for a user
type Subscription struct {
	ID                 uuid.UUID     `json:"id"`
	UserID             uuid.UUID     `json:"user_id"`
	ServiceName        string        `json:"service_name"`
	RenewalDate        time.Time     `json:"renewal_date"`
	BillingCycle       billing.Cycle `json:"billing_cycle"`
	CustomIntervalDays *int          `json:"custom_interval_days,omitempty"`
	Cost               float64       `json:"cost"`
	Currency           string        `json:"currency"`
	PaymentMethod      string        `json:"payment_method"`
	AccountName        cryptox.Field `json:"-"`
	ReminderDays       []int         `json:"reminder_days"`
	IsActive           bool          `json:"is_active"`
	Notes              *string       `json:"notes,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// HasReminderAt reports whether days is one of the configured reminder offsets
func (s *Subscription) HasReminderAt(days int) bool {
	for _, d := range s.ReminderDays {
		if d == days {
			return true
		}
	}
	return false
}

// ReminderCandidate is an active subscription joined with its owner, where
// the owner is active and has a notification address
type ReminderCandidate struct {
	Subscription Subscription
	User         User
}

// NotificationLog records one reminder attempt. Rows are append-only.
type NotificationLog struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	SentAt         time.Time `json:"sent_at"`
	Channel        string    `json:"channel"`
	Status         string    `json:"status"`
	DaysBefore     int       `json:"days_before"`
}

// Log status constants
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Channel constants
const (
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWebhook  = "webhook"
)

// ValidChannel reports whether ch is a supported notification channel
func ValidChannel(ch string) bool {
	switch ch {
	case ChannelTelegram, ChannelEmail, ChannelSMS, ChannelWebhook:
		return true
	}
	return false
}

// Message is a rendered reminder addressed to a user's notification channel
type Message struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Channel        string    `json:"channel"`
	Address        string    `json:"address"`
	Subject        string    `json:"subject"`
	Text           string    `json:"text"`
}
