package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/cryptox"
)

// Repository handles database operations for subscriptions and reminder logs
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new subscription repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const subscriptionColumns = `
	s.id, s.user_id, s.service_name, s.renewal_date, s.billing_cycle,
	s.custom_interval_days, s.cost, s.currency, s.payment_method,
	s.account_name, s.reminder_days, s.is_active, s.notes,
	s.created_at, s.updated_at`

// subscriptionScan collects scan targets for subscriptionColumns and
// converts them once the row has been read
type subscriptionScan struct {
	sub          *Subscription
	cycle        string
	interval     *int32
	accountName  string
	reminderDays []int32
}

func (s *subscriptionScan) dest() []any {
	return []any{
		&s.sub.ID,
		&s.sub.UserID,
		&s.sub.ServiceName,
		&s.sub.RenewalDate,
		&s.cycle,
		&s.interval,
		&s.sub.Cost,
		&s.sub.Currency,
		&s.sub.PaymentMethod,
		&s.accountName,
		&s.reminderDays,
		&s.sub.IsActive,
		&s.sub.Notes,
		&s.sub.CreatedAt,
		&s.sub.UpdatedAt,
	}
}

func (s *subscriptionScan) finish() {
	s.sub.BillingCycle = billing.Cycle(s.cycle)
	if s.interval != nil {
		v := int(*s.interval)
		s.sub.CustomIntervalDays = &v
	}
	s.sub.AccountName = cryptox.ParseField(s.accountName)
	s.sub.ReminderDays = make([]int, len(s.reminderDays))
	for i, d := range s.reminderDays {
		s.sub.ReminderDays[i] = int(d)
	}
	s.sub.RenewalDate = billing.DateOf(s.sub.RenewalDate)
}

// ListDueSubscriptions returns active subscriptions whose renewal date is on or before today
func (r *Repository) ListDueSubscriptions(ctx context.Context, today time.Time) ([]*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		WHERE s.is_active AND s.renewal_date <= $1
		ORDER BY s.renewal_date ASC, s.id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, billing.DateOf(today))
	if err != nil {
		return nil, fmt.Errorf("query due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sc := subscriptionScan{sub: &Subscription{}}
		if err := rows.Scan(sc.dest()...); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sc.finish()
		subs = append(subs, sc.sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return subs, nil
}

// UpdateRenewalDate sets a subscription's renewal date
func (r *Repository) UpdateRenewalDate(ctx context.Context, id uuid.UUID, renewal time.Time) error {
	query := `
		UPDATE subscriptions
		SET renewal_date = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query, billing.DateOf(renewal), id)
	if err != nil {
		r.logger.Error("failed to update renewal date",
			zap.Error(err),
			zap.String("subscription_id", id.String()),
		)
		return fmt.Errorf("update renewal date: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("subscription not found: %s", id)
	}

	return nil
}

// ListReminderCandidates returns active subscriptions of active users that
// have a notification address configured
func (r *Repository) ListReminderCandidates(ctx context.Context) ([]*ReminderCandidate, error) {
	query := `
		SELECT ` + subscriptionColumns + `,
			u.id, u.email, u.notify_channel, u.notify_address, u.is_active,
			u.created_at, u.updated_at
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.is_active
			AND u.is_active
			AND u.notify_address IS NOT NULL
			AND u.notify_address <> ''
		ORDER BY s.renewal_date ASC, s.id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query reminder candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*ReminderCandidate
	for rows.Next() {
		var c ReminderCandidate
		sc := subscriptionScan{sub: &c.Subscription}
		dest := append(sc.dest(),
			&c.User.ID,
			&c.User.Email,
			&c.User.NotifyChannel,
			&c.User.NotifyAddress,
			&c.User.IsActive,
			&c.User.CreatedAt,
			&c.User.UpdatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan reminder candidate: %w", err)
		}
		sc.finish()
		candidates = append(candidates, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return candidates, nil
}

// HasNotificationLog reports whether a reminder for (subscriptionID, daysBefore)
// was already attempted in [from, to), whatever its outcome
func (r *Repository) HasNotificationLog(ctx context.Context, subscriptionID uuid.UUID, daysBefore int, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_logs
			WHERE subscription_id = $1
				AND days_before = $2
				AND sent_at >= $3
				AND sent_at < $4
		)
	`

	var exists bool
	err := r.db.Pool().QueryRow(ctx, query, subscriptionID, daysBefore, from, to).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query notification log: %w", err)
	}

	return exists, nil
}

// CreateNotificationLog appends a reminder attempt
func (r *Repository) CreateNotificationLog(ctx context.Context, entry *NotificationLog) error {
	query := `
		INSERT INTO notification_logs (
			id, subscription_id, sent_at, channel, status, days_before
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		entry.ID,
		entry.SubscriptionID,
		entry.SentAt,
		entry.Channel,
		entry.Status,
		entry.DaysBefore,
	)
	if err != nil {
		r.logger.Error("failed to create notification log",
			zap.Error(err),
			zap.String("subscription_id", entry.SubscriptionID.String()),
		)
		return fmt.Errorf("insert notification log: %w", err)
	}

	return nil
}

// ListNotificationLogs retrieves reminder attempts for a subscription, newest first
func (r *Repository) ListNotificationLogs(
	ctx context.Context,
	subscriptionID uuid.UUID,
	limit int,
	offset int,
) ([]*NotificationLog, error) {
	query := `
		SELECT id, subscription_id, sent_at, channel, status, days_before
		FROM notification_logs
		WHERE subscription_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, subscriptionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notification logs: %w", err)
	}
	defer rows.Close()

	logs := []*NotificationLog{}
	for rows.Next() {
		var l NotificationLog
		err := rows.Scan(
			&l.ID,
			&l.SubscriptionID,
			&l.SentAt,
			&l.Channel,
			&l.Status,
			&l.DaysBefore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, nil
}

// LegacyAccount is a subscription whose account name is still stored in plaintext
type LegacyAccount struct {
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	AccountName    string
}

// ListLegacyAccountNames pages through subscriptions with a non-empty,
// untagged account name, ordered by id and starting after afterID
func (r *Repository) ListLegacyAccountNames(ctx context.Context, afterID uuid.UUID, limit int) ([]LegacyAccount, error) {
	query := `
		SELECT id, user_id, account_name
		FROM subscriptions
		WHERE id > $1
			AND account_name <> ''
			AND account_name NOT LIKE $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, afterID, cryptox.Prefix+":%", limit)
	if err != nil {
		return nil, fmt.Errorf("query legacy account names: %w", err)
	}

	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LegacyAccount, error) {
		var a LegacyAccount
		err := row.Scan(&a.SubscriptionID, &a.UserID, &a.AccountName)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan legacy account: %w", err)
	}

	return accounts, nil
}

// ReplaceAccountName swaps the stored account name only if it still equals
// previous. It reports whether the row was updated.
func (r *Repository) ReplaceAccountName(ctx context.Context, subscriptionID uuid.UUID, previous, next string) (bool, error) {
	query := `
		UPDATE subscriptions
		SET account_name = $1, updated_at = NOW()
		WHERE id = $2 AND account_name = $3
	`

	result, err := r.db.Pool().Exec(ctx, query, next, subscriptionID, previous)
	if err != nil {
		return false, fmt.Errorf("replace account name: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
