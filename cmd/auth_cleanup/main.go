package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"authsession/internal/config"
	"authsession/internal/database"
	"authsession/internal/logging"
	"authsession/internal/modules/session"
	"authsession/internal/repository"

	"go.uber.org/zap"
)

// One-shot removal of expired ledger rows, for cron.
func main() {
	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	cleanup := session.NewCleanupService(repository.NewCredentialTokenRepository(db), nil, logger)
	if err := cleanup.RunOnce(ctx); err != nil {
		logger.Fatal("auth cleanup failed", zap.Error(err))
	}
}
