package repository

import (
	"context"
	"testing"
	"time"

	"authsession/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type otpStore interface {
	SaveChallenge(ctx context.Context, c *domain.OTPChallenge, ttl time.Duration) error
	GetChallenge(ctx context.Context, identifier string) (*domain.OTPChallenge, error)
	DeleteChallenge(ctx context.Context, identifier string) (bool, error)
	AcquireCooldown(ctx context.Context, identifier string, ttl time.Duration) (bool, error)
	CooldownRemaining(ctx context.Context, identifier string) (time.Duration, error)
	ReleaseCooldown(ctx context.Context, identifier string) error
	IncrementAttempts(ctx context.Context, identifier string, ttl time.Duration) (int, error)
	Attempts(ctx context.Context, identifier string) (int, error)
	ResetAttempts(ctx context.Context, identifier string) error
}

type otpStoreFixture struct {
	store   otpStore
	advance func(time.Duration)
}

func otpStoreFixtures(t *testing.T) map[string]func(t *testing.T) otpStoreFixture {
	return map[string]func(t *testing.T) otpStoreFixture{
		"memory": func(t *testing.T) otpStoreFixture {
			clock := &testClock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
			return otpStoreFixture{
				store:   NewMemoryOTPStore().WithClock(clock.Now),
				advance: clock.Advance,
			}
		},
		"redis": func(t *testing.T) otpStoreFixture {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = rdb.Close()
				mr.Close()
			})
			return otpStoreFixture{
				store:   NewRedisOTPStore(rdb, "test:"),
				advance: mr.FastForward,
			}
		},
	}
}

func TestOTPStore_ChallengeExpires(t *testing.T) {
	for name, setup := range otpStoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)
			c := &domain.OTPChallenge{
				Identifier: "a@b.com",
				CodeHash:   "hash",
				CreatedAt:  now,
				ExpiresAt:  now.Add(5 * time.Minute),
			}
			require.NoError(t, f.store.SaveChallenge(ctx, c, 5*time.Minute))

			got, err := f.store.GetChallenge(ctx, "a@b.com")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "hash", got.CodeHash)
			assert.True(t, got.ExpiresAt.Equal(c.ExpiresAt))

			f.advance(5*time.Minute + time.Second)
			got, err = f.store.GetChallenge(ctx, "a@b.com")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestOTPStore_DeleteChallenge(t *testing.T) {
	for name, setup := range otpStoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			require.NoError(t, f.store.SaveChallenge(ctx, &domain.OTPChallenge{Identifier: "x"}, time.Minute))
			deleted, err := f.store.DeleteChallenge(ctx, "x")
			require.NoError(t, err)
			assert.True(t, deleted)
			deleted, err = f.store.DeleteChallenge(ctx, "x")
			require.NoError(t, err)
			assert.False(t, deleted, "a challenge is consumed once")

			got, err := f.store.GetChallenge(ctx, "x")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestOTPStore_CooldownDoesNotOverwrite(t *testing.T) {
	for name, setup := range otpStoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			ok, err := f.store.AcquireCooldown(ctx, "id", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			f.advance(20 * time.Second)
			ok, err = f.store.AcquireCooldown(ctx, "id", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			left, err := f.store.CooldownRemaining(ctx, "id")
			require.NoError(t, err)
			assert.InDelta(t, 40*time.Second, left, float64(time.Second))

			f.advance(41 * time.Second)
			left, err = f.store.CooldownRemaining(ctx, "id")
			require.NoError(t, err)
			assert.Zero(t, left)

			ok, err = f.store.AcquireCooldown(ctx, "id", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, f.store.ReleaseCooldown(ctx, "id"))
			left, err = f.store.CooldownRemaining(ctx, "id")
			require.NoError(t, err)
			assert.Zero(t, left)
		})
	}
}

func TestOTPStore_AttemptCounter(t *testing.T) {
	for name, setup := range otpStoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()

			n, err := f.store.Attempts(ctx, "id")
			require.NoError(t, err)
			assert.Zero(t, n)

			for want := 1; want <= 3; want++ {
				n, err = f.store.IncrementAttempts(ctx, "id", time.Minute)
				require.NoError(t, err)
				assert.Equal(t, want, n)
			}

			n, err = f.store.Attempts(ctx, "id")
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			f.advance(time.Minute + time.Second)
			n, err = f.store.Attempts(ctx, "id")
			require.NoError(t, err)
			assert.Zero(t, n, "counter expires with its ttl")

			_, err = f.store.IncrementAttempts(ctx, "id", time.Minute)
			require.NoError(t, err)
			require.NoError(t, f.store.ResetAttempts(ctx, "id"))
			n, err = f.store.Attempts(ctx, "id")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestMemoryOTPStore_Purge(t *testing.T) {
	clock := &testClock{t: time.Now()}
	store := NewMemoryOTPStore().WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.SaveChallenge(ctx, &domain.OTPChallenge{Identifier: "a"}, time.Minute))
	require.NoError(t, store.SaveChallenge(ctx, &domain.OTPChallenge{Identifier: "b"}, time.Hour))
	_, err := store.AcquireCooldown(ctx, "a", time.Minute)
	require.NoError(t, err)
	_, err = store.IncrementAttempts(ctx, "a", time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	removed, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	got, err := store.GetChallenge(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
