package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/db"
	"github.com/lalithlochan/subtrack/internal/metrics"
)

// LeaseName is the lease key shared by every instance running reminders.
const LeaseName = "reminder-run"

// Run results reported in RunReport.Result and the runs metric.
const (
	ResultCompleted = "completed"
	ResultSkipped   = "skipped"
	ResultAborted   = "aborted"
	ResultPanicked  = "panicked"
)

// Config tunes an Orchestrator. Lease and Events are optional.
type Config struct {
	Location  *time.Location
	SendDelay time.Duration
	LeaseTTL  time.Duration
	Lease     Lease
	Events    EventPublisher
}

// RunReport summarizes one run.
type RunReport struct {
	Result     string        `json:"result"`
	Today      string        `json:"today"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Advance    AdvanceResult `json:"advance"`
	Candidates int           `json:"candidates"`
	NotDue     int           `json:"not_due"`
	Handled    int           `json:"already_handled"`
	Sent       int           `json:"sent"`
	Failed     int           `json:"failed"`
	Errors     int           `json:"errors"`
	Unreadable int           `json:"unreadable_accounts"`
	Reason     string        `json:"reason,omitempty"`
}

// Orchestrator runs renewal advancement followed by reminder dispatch.
type Orchestrator struct {
	advancer   *Advancer
	candidates CandidateStore
	dispatcher *Dispatcher
	config     Config
	logger     *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	running sync.Mutex
}

// NewOrchestrator wires the advancer and dispatcher over store.
func NewOrchestrator(store Store, cipher Decrypter, notifier Notifier, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SendDelay == 0 {
		cfg.SendDelay = 100 * time.Millisecond
	}
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = 30 * time.Minute
	}

	return &Orchestrator{
		advancer:   NewAdvancer(store, logger),
		candidates: store,
		dispatcher: NewDispatcher(store, cipher, notifier, cfg.Events, cfg.Location, logger),
		config:     cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Run performs one full run. It never returns an error or panics: every
// failure ends up in the report and the log.
func (o *Orchestrator) Run(ctx context.Context) (report RunReport) {
	start := o.now()
	report.StartedAt = start

	defer func() {
		if r := recover(); r != nil {
			report.Result = ResultPanicked
			report.Reason = fmt.Sprint(r)
			o.logger.Error("reminder run panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
		report.Duration = o.now().Sub(start)
		metrics.RecordReminderRun(report.Result, report.Duration)
	}()

	if !o.running.TryLock() {
		report.Result = ResultSkipped
		report.Reason = "run already in progress"
		o.logger.Warn("reminder run skipped: previous run still in progress")
		return report
	}
	defer o.running.Unlock()

	release, ok := o.acquireLease(ctx)
	if !ok {
		report.Result = ResultSkipped
		report.Reason = "lease held by another instance"
		return report
	}
	defer release()

	today := billing.Today(start, o.config.Location)
	report.Today = today.Format(time.DateOnly)

	o.logger.Info("reminder run started", zap.String("today", report.Today))

	advance, err := o.advancer.AdvanceAll(ctx, today)
	report.Advance = advance
	if err != nil {
		report.Result = ResultAborted
		report.Reason = err.Error()
		o.logger.Error("reminder run aborted", zap.Error(err))
		return report
	}

	if err := o.dispatchAll(ctx, today, &report); err != nil {
		report.Result = ResultAborted
		report.Reason = err.Error()
		o.logger.Error("reminder run aborted", zap.Error(err))
		return report
	}

	report.Result = ResultCompleted
	o.logger.Info("reminder run completed",
		zap.Int("advanced", report.Advance.Advanced),
		zap.Int("candidates", report.Candidates),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("already_handled", report.Handled),
		zap.Int("errors", report.Errors+report.Advance.Failed),
	)
	return report
}

func (o *Orchestrator) dispatchAll(ctx context.Context, today time.Time, report *RunReport) error {
	candidates, err := o.candidates.ListReminderCandidates(ctx)
	if err != nil {
		return fmt.Errorf("list reminder candidates: %w", err)
	}
	report.Candidates = len(candidates)

	o.dispatcher.now = o.now

	for i, c := range candidates {
		var res Dispatch
		err := isolate(func() error {
			var err error
			res, err = o.dispatcher.Process(ctx, c, today)
			return err
		})

		if res.Placeholder {
			report.Unreadable++
		}

		if err != nil {
			report.Errors++
			metrics.RecordReminderSkipped("error")
			o.logger.Error("failed to process reminder",
				zap.String("subscription_id", c.Subscription.ID.String()),
				zap.Error(err),
			)
		} else {
			switch res.Outcome {
			case OutcomeNotDue:
				report.NotDue++
				metrics.RecordReminderSkipped(res.Outcome.String())
			case OutcomeAlreadyHandled:
				report.Handled++
				metrics.RecordReminderSkipped(res.Outcome.String())
			case OutcomeSent:
				report.Sent++
			case OutcomeFailed:
				report.Failed++
				o.logger.Warn("reminder not delivered",
					zap.String("subscription_id", c.Subscription.ID.String()),
					zap.Int("days_before", res.DaysBefore),
				)
			}
		}

		if !res.Outcome.Attempted() || i == len(candidates)-1 {
			continue
		}
		if err := o.sleep(ctx, o.config.SendDelay); err != nil {
			return fmt.Errorf("dispatch interrupted: %w", err)
		}
	}

	return nil
}

// acquireLease takes the cross-instance lease when one is configured. A lease
// backend error fails open so reminders still go out from a single instance.
func (o *Orchestrator) acquireLease(ctx context.Context) (func(), bool) {
	noop := func() {}
	if o.config.Lease == nil {
		return noop, true
	}

	token, ok, err := o.config.Lease.Acquire(ctx, LeaseName, o.config.LeaseTTL)
	if err != nil {
		o.logger.Warn("reminder lease unavailable, running without it", zap.Error(err))
		return noop, true
	}
	if !ok {
		o.logger.Info("reminder run skipped: lease held by another instance")
		return noop, false
	}

	return func() {
		if err := o.config.Lease.Release(context.WithoutCancel(ctx), LeaseName, token); err != nil {
			o.logger.Warn("failed to release reminder lease", zap.Error(err))
		}
	}, true
}

// isolate runs fn and turns a panic into an error so one bad row cannot
// stop the loop over the rest.
func isolate(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Store = (*db.Repository)(nil)
