package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/subtrack/internal/backfill"
	"github.com/lalithlochan/subtrack/internal/config"
	"github.com/lalithlochan/subtrack/internal/cryptox"
	"github.com/lalithlochan/subtrack/internal/db"
	"github.com/lalithlochan/subtrack/internal/observ"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	encrypt := flag.Bool("backfill-encryption", false, "encrypt plaintext account names after migrating")
	batchSize := flag.Int("batch-size", 500, "rows per backfill page")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger("subtrack-migrator", cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := db.Config{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		Database:        cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		ApplicationName: "subtrack-migrator",
	}

	start := time.Now()
	if err := db.Migrate(ctx, dbConfig, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations complete", zap.Duration("took", time.Since(start)))

	if !*encrypt {
		return nil
	}

	cipher, err := cryptox.NewCipherFromSecret(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	res, err := backfill.Run(ctx, db.NewRepository(database, logger), cipher, *batchSize, logger)
	logger.Info("encryption backfill finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("encrypted", res.Encrypted),
		zap.Int("conflicts", res.Conflicts),
		zap.Int("failed", res.Failed),
	)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	if res.Failed > 0 {
		return fmt.Errorf("backfill left %d rows unencrypted", res.Failed)
	}

	return nil
}
