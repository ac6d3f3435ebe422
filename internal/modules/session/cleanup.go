package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ExpiredTokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// ChallengePurger drops expired OTP state from stores without native TTL.
type ChallengePurger interface {
	Purge(ctx context.Context) (int, error)
}

// CleanupService removes ledger rows past their natural expiry. Revoked but
// unexpired rows are kept so they keep failing lookups.
type CleanupService struct {
	tokens     ExpiredTokenCleaner
	challenges ChallengePurger
	log        *zap.Logger
}

// NewCleanupService creates the cleanup service. challenges may be nil.
func NewCleanupService(tokens ExpiredTokenCleaner, challenges ChallengePurger, log *zap.Logger) *CleanupService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CleanupService{tokens: tokens, challenges: challenges, log: log}
}

// RunOnce runs every cleanup task and returns the first error.
func (c *CleanupService) RunOnce(ctx context.Context) error {
	start := time.Now()

	deleted, err := c.tokens.CleanupExpired(ctx)
	if err != nil {
		c.log.Error("token cleanup failed", zap.Error(err))
		return err
	}

	var purged int
	if c.challenges != nil {
		purged, err = c.challenges.Purge(ctx)
		if err != nil {
			c.log.Error("otp purge failed", zap.Error(err))
			return err
		}
	}

	c.log.Info("cleanup completed",
		zap.Int64("expired_tokens", deleted),
		zap.Int("otp_entries", purged),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Run repeats RunOnce every interval until ctx is done. Failures are logged
// and retried on the next tick.
func (c *CleanupService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		c.log.Info("scheduled cleanup disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.log.Info("scheduled cleanup started", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			_ = c.RunOnce(ctx)
		case <-ctx.Done():
			c.log.Info("scheduled cleanup stopped")
			return nil
		}
	}
}
