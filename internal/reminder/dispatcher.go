package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/cryptox"
	"github.com/lalithlochan/subtrack/internal/db"
	"github.com/lalithlochan/subtrack/internal/metrics"
)

// Outcome is what happened to one reminder candidate.
type Outcome int

const (
	OutcomeNotDue Outcome = iota
	OutcomeAlreadyHandled
	OutcomeSent
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotDue:
		return "not_due"
	case OutcomeAlreadyHandled:
		return "already_handled"
	case OutcomeSent:
		return db.StatusSent
	case OutcomeFailed:
		return db.StatusFailed
	default:
		return "unknown"
	}
}

// Attempted reports whether the outcome involved a send.
func (o Outcome) Attempted() bool {
	return o == OutcomeSent || o == OutcomeFailed
}

// Dispatch is the result of processing one candidate.
type Dispatch struct {
	Outcome     Outcome
	DaysBefore  int
	Placeholder bool
}

// Dispatcher decides whether a candidate is due today and, if so, sends the
// reminder and records the attempt.
type Dispatcher struct {
	logs     LogStore
	cipher   Decrypter
	notifier Notifier
	events   EventPublisher
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. events may be nil; loc defaults to UTC.
func NewDispatcher(logs LogStore, cipher Decrypter, notifier Notifier, events EventPublisher, loc *time.Location, logger *zap.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}

	return &Dispatcher{
		logs:     logs,
		cipher:   cipher,
		notifier: notifier,
		events:   events,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// Process evaluates c against today. A returned error means the dedupe
// check or the log insert failed; the send itself never produces an error.
func (d *Dispatcher) Process(ctx context.Context, c *db.ReminderCandidate, today time.Time) (Dispatch, error) {
	sub := &c.Subscription
	user := &c.User

	days, due := Evaluate(sub, today)
	if !due {
		return Dispatch{Outcome: OutcomeNotDue, DaysBefore: days}, nil
	}

	from, to := billing.DayWindow(today, d.loc)
	handled, err := d.logs.HasNotificationLog(ctx, sub.ID, days, from, to)
	if err != nil {
		return Dispatch{DaysBefore: days}, fmt.Errorf("check notification log: %w", err)
	}
	if handled {
		return Dispatch{Outcome: OutcomeAlreadyHandled, DaysBefore: days}, nil
	}

	account, placeholder := d.displayAccount(sub, user)

	channel := user.NotifyChannel
	if channel == "" {
		channel = db.ChannelTelegram
	}
	var address string
	if user.NotifyAddress != nil {
		address = *user.NotifyAddress
	}

	msg := &db.Message{
		SubscriptionID: sub.ID,
		UserID:         user.ID,
		Channel:        channel,
		Address:        address,
		Subject:        Subject(sub, days),
		Text:           FormatMessage(sub, days, account),
	}

	status := db.StatusFailed
	outcome := OutcomeFailed
	if d.notifier.Notify(ctx, msg) {
		status = db.StatusSent
		outcome = OutcomeSent
	}

	entry := &db.NotificationLog{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		SentAt:         d.now(),
		Channel:        channel,
		Status:         status,
		DaysBefore:     days,
	}

	if err := d.logs.CreateNotificationLog(ctx, entry); err != nil {
		return Dispatch{Outcome: outcome, DaysBefore: days, Placeholder: placeholder},
			fmt.Errorf("record %s reminder: %w", status, err)
	}

	metrics.RecordReminderDispatched(channel, status)
	d.publish(ctx, entry, user.ID)

	return Dispatch{Outcome: outcome, DaysBefore: days, Placeholder: placeholder}, nil
}

// displayAccount returns the masked account name, the placeholder when it
// cannot be decrypted, or "" when nothing is stored.
func (d *Dispatcher) displayAccount(sub *db.Subscription, user *db.User) (string, bool) {
	if sub.AccountName == nil {
		return "", false
	}
	if p, ok := sub.AccountName.(cryptox.Plaintext); ok && p == "" {
		return "", false
	}

	plain, err := d.cipher.Open(sub.AccountName, user.KeyID())
	if err != nil {
		metrics.RecordDecryptFailure()
		d.logger.Warn("account name unavailable",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		return AccountPlaceholder, true
	}

	return cryptox.MaskAccount(plain), false
}

func (d *Dispatcher) publish(ctx context.Context, entry *db.NotificationLog, userID uuid.UUID) {
	if d.events == nil {
		return
	}

	if err := d.events.PublishDispatched(ctx, entry, userID); err != nil {
		metrics.RecordDispatchEvent("failed")
		d.logger.Warn("failed to publish dispatch event",
			zap.String("subscription_id", entry.SubscriptionID.String()),
			zap.Error(err),
		)
		return
	}
	metrics.RecordDispatchEvent("published")
}
