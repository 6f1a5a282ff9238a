package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/db"
	"github.com/lalithlochan/subtrack/internal/metrics"
)

var errNoProgress = errors.New("renewal date did not advance")

// AdvanceResult counts what one AdvanceAll pass did.
type AdvanceResult struct {
	Advanced int `json:"advanced"`
	Static   int `json:"static"`
	Failed   int `json:"failed"`
}

// Advancer moves overdue renewal dates forward until they are in the future.
type Advancer struct {
	store  RenewalStore
	logger *zap.Logger
}

// NewAdvancer creates an Advancer backed by store.
func NewAdvancer(store RenewalStore, logger *zap.Logger) *Advancer {
	return &Advancer{
		store:  store,
		logger: logger,
	}
}

// AdvanceAll advances every active subscription renewing on or before today.
// Failures are isolated per subscription; only a failure to list the due
// subscriptions is returned.
func (a *Advancer) AdvanceAll(ctx context.Context, today time.Time) (AdvanceResult, error) {
	var result AdvanceResult

	today = billing.DateOf(today)

	subs, err := a.store.ListDueSubscriptions(ctx, today)
	if err != nil {
		return result, fmt.Errorf("list due subscriptions: %w", err)
	}

	for _, sub := range subs {
		if billing.IsStatic(sub.BillingCycle, sub.CustomIntervalDays) {
			result.Static++
			continue
		}

		err := isolate(func() error { return a.advance(ctx, sub, today) })
		if err != nil {
			result.Failed++
			a.logger.Error("failed to advance renewal",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("billing_cycle", string(sub.BillingCycle)),
				zap.Error(err),
			)
			continue
		}

		result.Advanced++
		metrics.RecordRenewalAdvanced()
	}

	return result, nil
}

func (a *Advancer) advance(ctx context.Context, sub *db.Subscription, today time.Time) error {
	next, err := NextAfter(sub.RenewalDate, today, sub.BillingCycle, sub.CustomIntervalDays)
	if err != nil {
		return err
	}

	if err := a.store.UpdateRenewalDate(ctx, sub.ID, next); err != nil {
		return err
	}

	a.logger.Debug("renewal advanced",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("from", sub.RenewalDate.Format(time.DateOnly)),
		zap.String("to", next.Format(time.DateOnly)),
	)
	return nil
}

// NextAfter applies the billing cycle to renewal repeatedly until the result
// is strictly after today, so a subscription that missed several cycles
// catches up in one call.
func NextAfter(renewal, today time.Time, cycle billing.Cycle, customIntervalDays *int) (time.Time, error) {
	next := billing.DateOf(renewal)
	today = billing.DateOf(today)

	for !next.After(today) {
		n, err := billing.NextRenewal(next, cycle, customIntervalDays)
		if err != nil {
			return time.Time{}, err
		}
		if !n.After(next) {
			return time.Time{}, fmt.Errorf("%w: %s cycle from %s", errNoProgress, cycle, next.Format(time.DateOnly))
		}
		next = n
	}

	return next, nil
}
