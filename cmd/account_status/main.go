package main

import (
	"context"
	"flag"
	"log"

	"authsession/internal/config"
	"authsession/internal/database"
	"authsession/internal/logging"
	"authsession/internal/modules/account"
	"authsession/internal/modules/session"
	"authsession/internal/pkg/jwt"
	"authsession/internal/repository"

	"go.uber.org/zap"
)

// Disables, enables or deletes an account. Disable and delete revoke every
// token the subject holds.
func main() {
	subjectID := flag.Int64("subject", 0, "subject id")
	action := flag.String("action", "", "disable | enable | delete")
	flag.Parse()

	if *subjectID <= 0 {
		log.Fatal("-subject is required")
	}

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	codec, err := jwt.New(jwt.Config{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		logger.Fatal("jwt config invalid", zap.Error(err))
	}
	sessions := session.NewService(repository.NewCredentialTokenRepository(db), codec, session.Options{}, logger)
	accounts := account.NewService(repository.NewAccountRepository(db), sessions, logger)

	ctx := context.Background()
	switch *action {
	case "disable":
		_, err = accounts.Disable(ctx, *subjectID)
	case "enable":
		err = accounts.Enable(ctx, *subjectID)
	case "delete":
		_, err = accounts.Delete(ctx, *subjectID)
	default:
		logger.Fatal("unknown -action", zap.String("action", *action))
	}
	if err != nil {
		logger.Fatal("account status change failed", zap.Int64("subject_id", *subjectID), zap.Error(err))
	}
}
