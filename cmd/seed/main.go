package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"authsession/internal/config"
	"authsession/internal/database"
	"authsession/internal/domain"
	"authsession/internal/logging"
	"authsession/internal/modules/session"
	"authsession/internal/pkg/jwt"
	"authsession/internal/repository"

	"go.uber.org/zap"
)

// Seeds active account rows and prints a fresh token pair per subject for
// local testing.
func main() {
	subjects := flag.String("subjects", "1,2", "comma-separated subject ids")
	device := flag.String("device", "seed-cli", "device label bound to the issued tokens")
	remember := flag.Bool("remember", false, "issue refresh tokens with the remember-me lifetime")
	flag.Parse()

	cfg, err := config.LoadAuthRuntimeConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("seed refuses to run in prod/release")
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ids, err := parseIDs(*subjects)
	if err != nil {
		logger.Fatal("invalid -subjects", zap.Error(err))
	}

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
		Leeway:        cfg.JWTLeeway,
	})
	if err != nil {
		logger.Fatal("jwt config invalid", zap.Error(err))
	}

	accounts := repository.NewAccountRepository(db)
	sessions := session.NewService(repository.NewCredentialTokenRepository(db), codec, session.Options{
		RefreshRememberTTL: cfg.RefreshRememberTTL,
	}, logger)

	var opts []session.IssueOption
	if *remember {
		opts = append(opts, session.RememberMe())
	}

	ctx := context.Background()
	for _, id := range ids {
		if err := accounts.SetDisabled(ctx, id, false); err != nil {
			logger.Fatal("seed account failed", zap.Int64("subject_id", id), zap.Error(err))
		}
		pair, err := sessions.IssuePair(ctx, id, domain.DeviceMetadata{DeviceLabel: *device, UserAgent: "seed"}, opts...)
		if err != nil {
			logger.Fatal("issue pair failed", zap.Int64("subject_id", id), zap.Error(err))
		}
		fmt.Printf("subject=%d\n  access=%s\n  refresh=%s\n  refresh_expires_at=%s\n",
			id, pair.AccessToken, pair.RefreshToken, pair.RefreshExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid subject id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no subject ids given")
	}
	return ids, nil
}
