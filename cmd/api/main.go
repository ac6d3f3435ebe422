package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authsession/internal/config"
	"authsession/internal/database"
	"authsession/internal/logging"
	"authsession/internal/middleware"
	"authsession/internal/modules/otp"
	"authsession/internal/modules/session"
	"authsession/internal/pkg/jwt"
	"authsession/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.AuthRuntimeConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
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
		return err
	}

	tokenRepo := repository.NewCredentialTokenRepository(db)
	sessionService := session.NewService(tokenRepo, codec, session.Options{
		RefreshRememberTTL:   cfg.RefreshRememberTTL,
		RotateRefreshOnRenew: cfg.RotateRefreshOnRenew,
	}, logger.Named("session"))

	otpStore, purger, closeStore, err := newOTPStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := otp.NewEngine(otpStore, otp.Config{
		CodeLength:     cfg.OTPLength,
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendCooldown: cfg.OTPResendCooldown,
		Pepper:         cfg.OTPCodePepper,
	}, logger.Named("otp"))
	if err != nil {
		return err
	}
	mailer := otp.NewDevConsoleMailer(cfg.DevMailerLogCodes, logger.Named("mailer"))
	otpHandler := otp.NewHandler(engine, mailer, logger.Named("otp"))

	var accounts middleware.AccountLookup
	if cfg.AccountGate {
		accounts = repository.NewAccountRepository(db)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(routerDeps{
		sessions:    sessionService,
		otp:         otpHandler,
		accounts:    accounts,
		corsOrigins: cfg.CORSAllowedOrigins,
		log:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	cleanup := session.NewCleanupService(tokenRepo, purger, logger.Named("cleanup"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("otp_store", cfg.OTPStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return cleanup.Run(gctx, cfg.TokenCleanupInterval)
	})

	return g.Wait()
}

// newOTPStore returns the challenge store and, for the in-memory store, the
// purger the cleanup worker should drive.
func newOTPStore(ctx context.Context, cfg *config.AuthRuntimeConfig, logger *zap.Logger) (otp.ChallengeStore, session.ChallengePurger, func(), error) {
	if cfg.OTPStore == config.OTPStoreRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		return repository.NewRedisOTPStore(client, cfg.RedisKeyPrefix), nil, func() { _ = client.Close() }, nil
	}

	logger.Warn("using in-memory otp store; challenges are not shared between instances")
	store := repository.NewMemoryOTPStore()
	return store, store, func() {}, nil
}
