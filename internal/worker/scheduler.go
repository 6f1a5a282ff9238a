package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/reminder"
)

// Runner performs one reminder run. *reminder.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context) reminder.RunReport
}

// SchedulerConfig controls when runs happen
type SchedulerConfig struct {
	Interval   time.Duration  // between runs, default 24h
	RunAt      string         // "HH:MM" of the first run in Location; empty starts the interval immediately
	Location   *time.Location // default UTC
	RunOnStart bool
}

// Scheduler invokes the runner once a day (or every Interval) until stopped.
// Runs are sequential, so they never overlap within the process.
type Scheduler struct {
	runner Runner
	config SchedulerConfig
	hour   int
	minute int
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler validates cfg and applies defaults
func NewScheduler(runner Runner, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Scheduler{
		runner: runner,
		config: cfg,
		hour:   -1,
		logger: logger,
		now:    time.Now,
	}

	if cfg.RunAt != "" {
		t, err := time.Parse("15:04", cfg.RunAt)
		if err != nil {
			return nil, fmt.Errorf("invalid run time %q: %w", cfg.RunAt, err)
		}
		s.hour, s.minute = t.Hour(), t.Minute()
	}

	return s, nil
}

// Start blocks until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	first := s.config.Interval
	if s.hour >= 0 {
		now := s.now()
		first = NextRunAt(now, s.hour, s.minute, s.config.Location).Sub(now)
	}

	s.logger.Info("reminder scheduler started",
		zap.Duration("first_run_in", first),
		zap.Duration("interval", s.config.Interval),
	)

	timer := time.NewTimer(first)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("reminder scheduler stopping")
		return
	case <-timer.C:
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report := s.runner.Run(ctx)
	s.logger.Info("scheduled reminder run finished",
		zap.String("result", report.Result),
		zap.Duration("duration", report.Duration),
	)
}

// NextRunAt returns the next instant strictly after now whose wall clock in
// loc reads hour:minute
func NextRunAt(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
