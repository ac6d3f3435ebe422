package repository

import (
	"context"
	"sync"
	"time"

	"authsession/internal/domain"
)

// MemoryOTPStore keeps OTP state in process memory with lazy expiry.
// It is not shared between instances; use RedisOTPStore behind a load
// balancer.
type MemoryOTPStore struct {
	mu         sync.Mutex
	challenges map[string]challengeEntry
	cooldowns  map[string]time.Time
	attempts   map[string]attemptEntry
	now        func() time.Time
}

type challengeEntry struct {
	challenge domain.OTPChallenge
	expiresAt time.Time
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		challenges: make(map[string]challengeEntry),
		cooldowns:  make(map[string]time.Time),
		attempts:   make(map[string]attemptEntry),
		now:        time.Now,
	}
}

func (s *MemoryOTPStore) WithClock(now func() time.Time) *MemoryOTPStore {
	s.now = now
	return s
}

func (s *MemoryOTPStore) SaveChallenge(_ context.Context, c *domain.OTPChallenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.Identifier] = challengeEntry{challenge: *c, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryOTPStore) GetChallenge(_ context.Context, identifier string) (*domain.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.challenges[identifier]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.challenges, identifier)
		return nil, nil
	}
	c := e.challenge
	return &c, nil
}

func (s *MemoryOTPStore) DeleteChallenge(_ context.Context, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.challenges[identifier]
	if !ok {
		return false, nil
	}
	delete(s.challenges, identifier)
	return s.now().Before(e.expiresAt), nil
}

func (s *MemoryOTPStore) AcquireCooldown(_ context.Context, identifier string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if until, ok := s.cooldowns[identifier]; ok && now.Before(until) {
		return false, nil
	}
	s.cooldowns[identifier] = now.Add(ttl)
	return true, nil
}

func (s *MemoryOTPStore) CooldownRemaining(_ context.Context, identifier string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.cooldowns[identifier]
	if !ok {
		return 0, nil
	}
	left := until.Sub(s.now())
	if left <= 0 {
		delete(s.cooldowns, identifier)
		return 0, nil
	}
	return left, nil
}

func (s *MemoryOTPStore) ReleaseCooldown(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cooldowns, identifier)
	return nil
}

// IncrementAttempts bumps the counter and resets its expiry to ttl, matching
// INCR + PEXPIRE.
func (s *MemoryOTPStore) IncrementAttempts(_ context.Context, identifier string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.attempts[identifier]
	if !ok || !now.Before(e.expiresAt) {
		e = attemptEntry{}
	}
	e.count++
	e.expiresAt = now.Add(ttl)
	s.attempts[identifier] = e
	return e.count, nil
}

func (s *MemoryOTPStore) Attempts(_ context.Context, identifier string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.attempts[identifier]
	if !ok {
		return 0, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.attempts, identifier)
		return 0, nil
	}
	return e.count, nil
}

func (s *MemoryOTPStore) ResetAttempts(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, identifier)
	return nil
}

// Purge drops every expired entry and returns how many were removed.
func (s *MemoryOTPStore) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.challenges {
		if !now.Before(e.expiresAt) {
			delete(s.challenges, k)
			removed++
		}
	}
	for k, until := range s.cooldowns {
		if !now.Before(until) {
			delete(s.cooldowns, k)
			removed++
		}
	}
	for k, e := range s.attempts {
		if !now.Before(e.expiresAt) {
			delete(s.attempts, k)
			removed++
		}
	}
	return removed, nil
}
