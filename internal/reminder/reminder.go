// Package reminder advances overdue subscription renewals and dispatches
// renewal reminders through the user's notification channel.
//
// A run is strictly sequential: every due subscription is advanced first,
// then each reminder candidate is evaluated and, when today matches one of
// its reminder offsets, dispatched and recorded in the notification log.
// The log doubles as the dedupe ledger, so a second run on the same day
// never sends the same reminder twice.
package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/subtrack/internal/cryptox"
	"github.com/lalithlochan/subtrack/internal/db"
)

// RenewalStore reads due subscriptions and persists advanced renewal dates.
type RenewalStore interface {
	ListDueSubscriptions(ctx context.Context, today time.Time) ([]*db.Subscription, error)
	UpdateRenewalDate(ctx context.Context, id uuid.UUID, renewal time.Time) error
}

// CandidateStore lists active subscriptions whose owners can be notified.
type CandidateStore interface {
	ListReminderCandidates(ctx context.Context) ([]*db.ReminderCandidate, error)
}

// LogStore is the notification log used as the per-day dedupe ledger.
type LogStore interface {
	HasNotificationLog(ctx context.Context, subscriptionID uuid.UUID, daysBefore int, from, to time.Time) (bool, error)
	CreateNotificationLog(ctx context.Context, entry *db.NotificationLog) error
}

// Store is everything a run reads and writes. *db.Repository satisfies it.
type Store interface {
	RenewalStore
	CandidateStore
	LogStore
}

// Notifier delivers a message and reports whether it was accepted.
// Ordinary delivery failures are reported as false, never as a panic.
type Notifier interface {
	Notify(ctx context.Context, msg *db.Message) bool
}

// Decrypter opens a stored account-name field with the owner's key.
type Decrypter interface {
	Open(f cryptox.Field, userID string) (string, error)
}

// EventPublisher announces a recorded dispatch attempt to downstream consumers.
type EventPublisher interface {
	PublishDispatched(ctx context.Context, entry *db.NotificationLog, userID uuid.UUID) error
}

// Lease guards a run against overlapping runs on other instances.
// Acquire reports ok=false when another holder owns the lease.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, name, token string) error
}
