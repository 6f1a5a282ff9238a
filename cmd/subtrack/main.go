package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/api"
	"github.com/lalithlochan/subtrack/internal/circuitbreaker"
	"github.com/lalithlochan/subtrack/internal/config"
	"github.com/lalithlochan/subtrack/internal/cryptox"
	"github.com/lalithlochan/subtrack/internal/db"
	"github.com/lalithlochan/subtrack/internal/observ"
	"github.com/lalithlochan/subtrack/internal/redis"
	"github.com/lalithlochan/subtrack/internal/reminder"
	"github.com/lalithlochan/subtrack/internal/sqs"
	"github.com/lalithlochan/subtrack/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger("subtrack", cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting subtrack",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("timezone", cfg.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	repo := db.NewRepository(database, logger)

	cipher, err := cryptox.NewCipherFromSecret(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	sender, breakers, err := buildSenders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	notifier := worker.NewNotifier(sender, 30*time.Second, logger)

	runCfg := reminder.Config{
		Location:  cfg.Location(),
		SendDelay: cfg.ReminderSendDelay,
		LeaseTTL:  cfg.ReminderLeaseTTL,
	}

	// Redis is optional: without it runs are only guarded in-process and the
	// API is not rate limited.
	var limiter api.Limiter
	if cfg.RedisEnabled() {
		redisClient, err := redis.New(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, run lease and rate limiting disabled",
				zap.Error(err),
				zap.String("host", cfg.RedisHost),
			)
		} else {
			defer redisClient.Close()
			runCfg.Lease = redis.NewLeaseService(redisClient, logger)
			limiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
				Limit:  cfg.RateLimit,
				Window: time.Minute,
			})
		}
	}

	if cfg.SQSQueueURL != "" {
		producer, err := sqs.NewProducer(ctx, sqs.Config{
			Region:   cfg.SQSRegion,
			QueueURL: cfg.SQSQueueURL,
		}, logger)
		if err != nil {
			logger.Warn("sqs producer unavailable, dispatch events disabled", zap.Error(err))
		} else {
			runCfg.Events = producer
		}
	}

	orchestrator := reminder.NewOrchestrator(repo, cipher, notifier, runCfg, logger)

	scheduler, err := worker.NewScheduler(orchestrator, worker.SchedulerConfig{
		Interval:   cfg.ReminderInterval,
		RunAt:      cfg.ReminderRunAt,
		Location:   cfg.Location(),
		RunOnStart: cfg.ReminderRunOnStart,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx)
	}()

	handler := api.NewHandler(logger, repo, orchestrator, database, breakers...)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     api.NewRouter(handler, limiter, logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	// A run in progress stops at its next send delay
	stop()
	<-schedulerDone
	logger.Info("subtrack stopped")

	return nil
}

// buildSenders wires one sender per configured channel, each behind its own
// circuit breaker. In development, unconfigured channels are logged instead.
func buildSenders(ctx context.Context, cfg *config.Config, logger *zap.Logger) (worker.Sender, []*circuitbreaker.CircuitBreaker, error) {
	var (
		senders  []worker.Sender
		breakers []*circuitbreaker.CircuitBreaker
		missing  []string
	)

	protect := func(channel string, s worker.Sender) {
		cb := circuitbreaker.New(circuitbreaker.DefaultConfig(channel), logger)
		breakers = append(breakers, cb)
		senders = append(senders, circuitbreaker.NewProtectedSender(s, cb, logger))
	}

	if cfg.TelegramBotToken != "" {
		telegram, err := worker.NewTelegramSender(worker.TelegramConfig{
			Token:  cfg.TelegramBotToken,
			APIURL: cfg.TelegramAPIURL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create telegram sender: %w", err)
		}
		protect(db.ChannelTelegram, telegram)
	} else {
		missing = append(missing, db.ChannelTelegram)
	}

	if cfg.SESFromEmail != "" {
		ses, err := worker.NewSESSender(ctx, worker.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SES email sender: %w", err)
		}
		protect(db.ChannelEmail, ses)
	} else {
		missing = append(missing, db.ChannelEmail)
	}

	if cfg.SNSEnabled {
		sns, err := worker.NewSNSSender(ctx, worker.SNSConfig{Region: cfg.SNSRegion}, logger)
		if err != nil {
			logger.Warn("SNS sender unavailable, SMS reminders disabled", zap.Error(err))
			missing = append(missing, db.ChannelSMS)
		} else {
			protect(db.ChannelSMS, sns)
		}
	} else {
		missing = append(missing, db.ChannelSMS)
	}

	protect(db.ChannelWebhook, worker.NewWebhookSender(logger, worker.WebhookConfig{
		DefaultTimeout: cfg.WebhookTimeout,
	}))

	if len(missing) > 0 {
		if cfg.Env == "production" {
			logger.Warn("reminder channels not configured, sends to them will fail",
				zap.Strings("channels", missing),
			)
		} else {
			senders = append(senders, worker.NewLogSender(logger, missing...))
			logger.Info("logging reminders for unconfigured channels",
				zap.Strings("channels", missing),
			)
		}
	}

	return worker.NewMultiSender(logger, senders...), breakers, nil
}
