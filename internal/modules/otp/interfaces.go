package otp

import (
	"context"
	"time"

	"authsession/internal/domain"
)

// ChallengeStore holds the three TTL-bound records kept per identifier:
// the challenge, the resend-cooldown marker and the attempt counter.
// Lookups of absent or expired records return zero values, not errors.
type ChallengeStore interface {
	SaveChallenge(ctx context.Context, c *domain.OTPChallenge, ttl time.Duration) error
	GetChallenge(ctx context.Context, identifier string) (*domain.OTPChallenge, error)
	// DeleteChallenge reports whether a live challenge was removed, so only
	// one caller can consume it.
	DeleteChallenge(ctx context.Context, identifier string) (bool, error)

	// AcquireCooldown sets the marker only when absent and reports whether it did.
	AcquireCooldown(ctx context.Context, identifier string, ttl time.Duration) (bool, error)
	CooldownRemaining(ctx context.Context, identifier string) (time.Duration, error)
	ReleaseCooldown(ctx context.Context, identifier string) error

	IncrementAttempts(ctx context.Context, identifier string, ttl time.Duration) (int, error)
	Attempts(ctx context.Context, identifier string) (int, error)
	ResetAttempts(ctx context.Context, identifier string) error
}

// Mailer delivers a code out-of-band.
type Mailer interface {
	SendCode(ctx context.Context, identifier, code string, expiresIn time.Duration) error
}
