package repository

import (
	"context"
	"testing"
	"time"

	"authsession/internal/database"
	"authsession/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTokenRepo(t *testing.T) (*CredentialTokenRepository, *testClock) {
	t.Helper()
	db, err := database.Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	clock := &testClock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
	return NewCredentialTokenRepository(db).WithClock(clock.Now), clock
}

func tokenRow(subjectID int64, tokenID, device string, expiresAt time.Time) *domain.CredentialToken {
	row := &domain.CredentialToken{
		SubjectID: subjectID,
		TokenID:   tokenID,
		Kind:      domain.TokenKindAccess,
		ExpiresAt: expiresAt,
	}
	if device != "" {
		row.DeviceLabel = &device
	}
	return row
}

func TestCredentialTokenRepository_SaveAndFind(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()

	ua := "Mozilla/5.0"
	row := tokenRow(1, "tok-1", "laptop", clock.Now().Add(time.Hour))
	row.UserAgent = &ua
	require.NoError(t, repo.Save(ctx, row))

	found, err := repo.FindByID(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.SubjectID)
	assert.Equal(t, domain.TokenKindAccess, found.Kind)
	assert.False(t, found.Revoked)
	assert.Nil(t, found.RevokedAt)
	assert.Equal(t, "laptop", found.Device().DeviceLabel)
	assert.Equal(t, "Mozilla/5.0", found.Device().UserAgent)
	assert.True(t, found.ExpiresAt.Equal(clock.Now().Add(time.Hour)))

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestCredentialTokenRepository_SaveDuplicate(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, tokenRow(1, "dup", "", clock.Now().Add(time.Hour))))
	err := repo.Save(ctx, tokenRow(2, "dup", "", clock.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrDuplicateTokenID)
}

func TestCredentialTokenRepository_IsRevokedFailsClosed(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, tokenRow(1, "live", "", clock.Now().Add(time.Hour))))

	revoked, err := repo.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = repo.IsRevoked(ctx, "never-issued")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock.Advance(time.Hour)
	revoked, err = repo.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked, "expired rows count as revoked")
}

func TestCredentialTokenRepository_RevokeIsIdempotent(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, tokenRow(1, "tok", "", clock.Now().Add(time.Hour))))

	flipped, err := repo.MarkRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, flipped)

	first, err := repo.FindByID(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, first.RevokedAt)

	clock.Advance(time.Minute)
	flipped, err = repo.MarkRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, flipped)
	require.NoError(t, repo.Revoke(ctx, "tok"))

	second, err := repo.FindByID(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, second.Revoked)
	assert.True(t, first.RevokedAt.Equal(*second.RevokedAt), "revoked_at is set exactly once")

	assert.ErrorIs(t, repo.Revoke(ctx, "unknown"), ErrTokenNotFound)
}

func TestCredentialTokenRepository_RevokeAllScopedToSubject(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()
	exp := clock.Now().Add(time.Hour)
	require.NoError(t, repo.Save(ctx, tokenRow(1, "a1", "", exp)))
	require.NoError(t, repo.Save(ctx, tokenRow(1, "a2", "", exp)))
	require.NoError(t, repo.Save(ctx, tokenRow(2, "b1", "", exp)))

	n, err := repo.RevokeAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{"a1", "a2"} {
		revoked, err := repo.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.True(t, revoked, id)
	}
	revoked, err := repo.IsRevoked(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestCredentialTokenRepository_RevokeByDevice(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()
	exp := clock.Now().Add(time.Hour)
	require.NoError(t, repo.Save(ctx, tokenRow(1, "phone-a", "phone", exp)))
	require.NoError(t, repo.Save(ctx, tokenRow(1, "phone-r", "phone", exp)))
	require.NoError(t, repo.Save(ctx, tokenRow(1, "laptop-a", "laptop", exp)))
	require.NoError(t, repo.Save(ctx, tokenRow(2, "other-phone", "phone", exp)))

	n, err := repo.RevokeByDevice(ctx, 1, "phone")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	active, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "laptop-a", active[0].TokenID)

	active, err = repo.ListActive(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCredentialTokenRepository_ListActiveSkipsExpired(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, tokenRow(1, "short", "", clock.Now().Add(time.Minute))))
	clock.Advance(time.Second)
	require.NoError(t, repo.Save(ctx, tokenRow(1, "long", "", clock.Now().Add(time.Hour))))

	active, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "long", active[0].TokenID)

	clock.Advance(2 * time.Minute)
	active, err = repo.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "long", active[0].TokenID)
}

func TestCredentialTokenRepository_CleanupExpired(t *testing.T) {
	repo, clock := newTokenRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, tokenRow(1, "old", "", clock.Now().Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, tokenRow(1, "old-revoked", "", clock.Now().Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, tokenRow(1, "fresh", "", clock.Now().Add(time.Hour))))
	require.NoError(t, repo.Revoke(ctx, "old-revoked"))

	clock.Advance(10 * time.Minute)
	n, err := repo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.FindByID(ctx, "old")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = repo.FindByID(ctx, "fresh")
	assert.NoError(t, err)

	n, err = repo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCredentialTokenRepository_SaveRejectsUnknownKind(t *testing.T) {
	repo, clock := newTokenRepo(t)
	row := tokenRow(1, "odd", "", clock.Now().Add(time.Hour))
	row.Kind = "id_token"

	assert.Error(t, repo.Save(context.Background(), row))
}
