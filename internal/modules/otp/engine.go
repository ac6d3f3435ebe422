package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"
	"time"

	"authsession/internal/domain"

	"go.uber.org/zap"
)

const (
	DefaultCodeLength     = 6
	DefaultTTL            = 300 * time.Second
	DefaultMaxAttempts    = 5
	DefaultResendCooldown = 60 * time.Second

	minCodeLength = 4
	maxCodeLength = 10
)

type Config struct {
	CodeLength     int
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	// Pepper is mixed into the stored code hash.
	Pepper string
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{
		CodeLength:     DefaultCodeLength,
		TTL:            DefaultTTL,
		MaxAttempts:    DefaultMaxAttempts,
		ResendCooldown: DefaultResendCooldown,
	}
}

// Engine issues and verifies one-time passcodes. All state lives in the
// ChallengeStore, so the Engine itself is safe for concurrent use.
type Engine struct {
	store  ChallengeStore
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
	random io.Reader
}

type IssueResult struct {
	Code      string
	ExpiresAt time.Time
	ExpiresIn int
}

type ResendStatus struct {
	Allowed     bool `json:"allowed"`
	SecondsLeft int  `json:"seconds_left"`
}

// Status is a read-only view of a live challenge. It never carries the code.
type Status struct {
	ExpiresIn    int  `json:"expires_in"`
	AttemptsLeft int  `json:"attempts_left"`
	CanResend    bool `json:"can_resend"`
	ResendIn     int  `json:"resend_in"`
}

type IssueOption func(*issueParams)

type issueParams struct {
	length int
	ttl    time.Duration
}

func WithLength(n int) IssueOption {
	return func(p *issueParams) { p.length = n }
}

func WithTTL(ttl time.Duration) IssueOption {
	return func(p *issueParams) { p.ttl = ttl }
}

func NewEngine(store ChallengeStore, cfg Config, log *zap.Logger) (*Engine, error) {
	def := DefaultConfig()
	if cfg.CodeLength == 0 {
		cfg.CodeLength = def.CodeLength
	}
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.ResendCooldown == 0 {
		cfg.ResendCooldown = def.ResendCooldown
	}
	if cfg.CodeLength < minCodeLength || cfg.CodeLength > maxCodeLength {
		return nil, fmt.Errorf("otp: code length must be between %d and %d", minCodeLength, maxCodeLength)
	}
	if cfg.TTL < 0 || cfg.ResendCooldown < 0 || cfg.MaxAttempts < 0 {
		return nil, errors.New("otp: ttl, cooldown and max attempts must be positive")
	}
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, cfg: cfg, log: log, now: now, random: rand.Reader}, nil
}

// Issue creates a fresh challenge for identifier. It fails with a
// *CooldownError while the previous code's resend marker is live; the
// existing challenge is left untouched in that case.
func (e *Engine) Issue(ctx context.Context, identifier string, opts ...IssueOption) (*IssueResult, error) {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	p := issueParams{length: e.cfg.CodeLength, ttl: e.cfg.TTL}
	for _, opt := range opts {
		opt(&p)
	}
	if p.length < minCodeLength || p.length > maxCodeLength {
		return nil, fmt.Errorf("otp: code length must be between %d and %d", minCodeLength, maxCodeLength)
	}
	if p.ttl <= 0 {
		return nil, errors.New("otp: ttl must be > 0")
	}

	acquired, err := e.store.AcquireCooldown(ctx, id, e.cfg.ResendCooldown)
	if err != nil {
		return nil, err
	}
	if !acquired {
		left, err := e.store.CooldownRemaining(ctx, id)
		if err != nil {
			return nil, err
		}
		e.log.Debug("otp resend rejected", zap.String("identifier", id), zap.Duration("cooldown_left", left))
		return nil, &CooldownError{SecondsLeft: ceilSeconds(left)}
	}

	code, err := e.generateCode(p.length)
	if err != nil {
		e.releaseCooldown(ctx, id)
		return nil, err
	}

	now := e.now().UTC()
	challenge := &domain.OTPChallenge{
		Identifier: id,
		CodeHash:   e.hashCode(code),
		CreatedAt:  now,
		ExpiresAt:  now.Add(p.ttl),
	}
	if err := e.store.SaveChallenge(ctx, challenge, p.ttl); err != nil {
		e.releaseCooldown(ctx, id)
		return nil, err
	}
	if err := e.store.ResetAttempts(ctx, id); err != nil {
		e.discard(ctx, id)
		return nil, err
	}

	e.log.Debug("otp issued", zap.String("identifier", id), zap.Time("expires_at", challenge.ExpiresAt))
	return &IssueResult{
		Code:      code,
		ExpiresAt: challenge.ExpiresAt,
		ExpiresIn: ceilSeconds(p.ttl),
	}, nil
}

// Verify consumes the challenge on a match. Every call takes an attempt
// slot before the code is compared; once the ceiling is passed the
// challenge is deleted.
func (e *Engine) Verify(ctx context.Context, identifier, code string) error {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return err
	}

	challenge, err := e.store.GetChallenge(ctx, id)
	if err != nil {
		return err
	}
	now := e.now()
	if challenge == nil {
		return ErrOtpExpired
	}
	if challenge.IsExpired(now) {
		if _, err := e.store.DeleteChallenge(ctx, id); err != nil {
			return err
		}
		return ErrOtpExpired
	}

	ttl := challenge.TTL(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	n, err := e.store.IncrementAttempts(ctx, id, ttl)
	if err != nil {
		return err
	}
	if n > e.cfg.MaxAttempts {
		// The counter is kept until it expires with the challenge.
		if _, err := e.store.DeleteChallenge(ctx, id); err != nil {
			e.log.Error("otp challenge delete failed", zap.String("identifier", id), zap.Error(err))
		}
		e.log.Warn("otp attempts exhausted", zap.String("identifier", id), zap.Int("attempts", n))
		return ErrOtpMaxAttemptsExceeded
	}

	submitted := e.hashCode(strings.TrimSpace(code))
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(challenge.CodeHash)) != 1 {
		left := e.cfg.MaxAttempts - n
		e.log.Info("otp mismatch", zap.String("identifier", id), zap.Int("attempts_left", left))
		return &InvalidCodeError{AttemptsLeft: left}
	}

	deleted, err := e.store.DeleteChallenge(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrOtpExpired
	}
	e.resetAttempts(ctx, id)
	e.releaseCooldown(ctx, id)
	e.log.Debug("otp verified", zap.String("identifier", id))
	return nil
}

// Cancel drops the live challenge and its resend marker, e.g. when the
// code could not be delivered.
func (e *Engine) Cancel(ctx context.Context, identifier string) error {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return err
	}
	e.discard(ctx, id)
	return nil
}

// CanResend is a pure read of the cooldown marker.
func (e *Engine) CanResend(ctx context.Context, identifier string) (*ResendStatus, error) {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	left, err := e.store.CooldownRemaining(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ResendStatus{Allowed: left <= 0, SecondsLeft: ceilSeconds(left)}, nil
}

// Peek reports the state of a live challenge, or nil when there is none.
func (e *Engine) Peek(ctx context.Context, identifier string) (*Status, error) {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	challenge, err := e.store.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if challenge == nil || challenge.IsExpired(now) {
		return nil, nil
	}
	attempts, err := e.store.Attempts(ctx, id)
	if err != nil {
		return nil, err
	}
	resend, err := e.CanResend(ctx, id)
	if err != nil {
		return nil, err
	}
	left := e.cfg.MaxAttempts - attempts
	if left < 0 {
		left = 0
	}
	return &Status{
		ExpiresIn:    ceilSeconds(challenge.TTL(now)),
		AttemptsLeft: left,
		CanResend:    resend.Allowed,
		ResendIn:     resend.SecondsLeft,
	}, nil
}

// discard removes a challenge that was never handed out.
func (e *Engine) discard(ctx context.Context, id string) {
	if _, err := e.store.DeleteChallenge(ctx, id); err != nil {
		e.log.Error("otp challenge delete failed", zap.String("identifier", id), zap.Error(err))
	}
	e.resetAttempts(ctx, id)
	e.releaseCooldown(ctx, id)
}

func (e *Engine) resetAttempts(ctx context.Context, id string) {
	if err := e.store.ResetAttempts(ctx, id); err != nil {
		e.log.Error("otp attempts reset failed", zap.String("identifier", id), zap.Error(err))
	}
}

func (e *Engine) releaseCooldown(ctx context.Context, id string) {
	if err := e.store.ReleaseCooldown(ctx, id); err != nil {
		e.log.Error("otp cooldown release failed", zap.String("identifier", id), zap.Error(err))
	}
}

func (e *Engine) generateCode(length int) (string, error) {
	limit := big.NewInt(int64(math.Pow10(length)))
	n, err := rand.Int(e.random, limit)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

func (e *Engine) hashCode(code string) string {
	h := sha256.Sum256([]byte(code + e.cfg.Pepper))
	return hex.EncodeToString(h[:])
}

func normalizeIdentifier(identifier string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return "", ErrInvalidIdentifier
	}
	return id, nil
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
