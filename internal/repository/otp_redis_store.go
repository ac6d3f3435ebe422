package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"authsession/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	otpChallengePrefix = "otp:"
	otpCooldownPrefix  = "otp_cooldown:"
	otpAttemptPrefix   = "otp_attempts:"
)

// RedisOTPStore keeps OTP state in Redis with native key expiry, so every
// service instance sees the same cooldowns and attempt counters.
type RedisOTPStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisOTPStore(client redis.UniversalClient, prefix string) *RedisOTPStore {
	return &RedisOTPStore{client: client, prefix: prefix}
}

func (s *RedisOTPStore) key(kind, identifier string) string {
	return s.prefix + kind + identifier
}

func (s *RedisOTPStore) SaveChallenge(ctx context.Context, c *domain.OTPChallenge, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode otp challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.key(otpChallengePrefix, c.Identifier), data, ttl).Err(); err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) GetChallenge(ctx context.Context, identifier string) (*domain.OTPChallenge, error) {
	data, err := s.client.Get(ctx, s.key(otpChallengePrefix, identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get otp challenge: %w", err)
	}
	var c domain.OTPChallenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode otp challenge: %w", err)
	}
	return &c, nil
}

func (s *RedisOTPStore) DeleteChallenge(ctx context.Context, identifier string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(otpChallengePrefix, identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("delete otp challenge: %w", err)
	}
	return n > 0, nil
}

// AcquireCooldown sets the resend marker only if it is absent.
func (s *RedisOTPStore) AcquireCooldown(ctx context.Context, identifier string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(otpCooldownPrefix, identifier), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set otp cooldown: %w", err)
	}
	return ok, nil
}

func (s *RedisOTPStore) CooldownRemaining(ctx context.Context, identifier string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.key(otpCooldownPrefix, identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("read otp cooldown: %w", err)
	}
	// -2 missing key, -1 no expiry.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisOTPStore) ReleaseCooldown(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, s.key(otpCooldownPrefix, identifier)).Err()
}

func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, identifier string, ttl time.Duration) (int, error) {
	key := s.key(otpAttemptPrefix, identifier)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return int(incr.Val()), nil
}

func (s *RedisOTPStore) Attempts(ctx context.Context, identifier string) (int, error) {
	n, err := s.client.Get(ctx, s.key(otpAttemptPrefix, identifier)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read otp attempts: %w", err)
	}
	return n, nil
}

func (s *RedisOTPStore) ResetAttempts(ctx context.Context, identifier string) error {
	return s.client.Del(ctx, s.key(otpAttemptPrefix, identifier)).Err()
}
