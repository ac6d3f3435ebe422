package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"authsession/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockPurger struct {
	mock.Mock
}

func (m *mockPurger) Purge(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestCleanupService_RunOnce(t *testing.T) {
	cleaner := new(mockCleaner)
	purger := new(mockPurger)
	cleaner.On("CleanupExpired", mock.Anything).Return(int64(3), nil)
	purger.On("Purge", mock.Anything).Return(2, nil)

	require.NoError(t, NewCleanupService(cleaner, purger, zap.NewNop()).RunOnce(context.Background()))
	cleaner.AssertExpectations(t)
	purger.AssertExpectations(t)
}

func TestCleanupService_RunOnceStopsOnTokenError(t *testing.T) {
	cleaner := new(mockCleaner)
	purger := new(mockPurger)
	cleaner.On("CleanupExpired", mock.Anything).Return(int64(0), errors.New("db down"))

	err := NewCleanupService(cleaner, purger, nil).RunOnce(context.Background())
	assert.Error(t, err)
	purger.AssertNotCalled(t, "Purge", mock.Anything)
}

func TestCleanupService_RunStopsWithContext(t *testing.T) {
	ticked := make(chan struct{})
	var once sync.Once
	cleaner := new(mockCleaner)
	cleaner.On("CleanupExpired", mock.Anything).
		Run(func(mock.Arguments) { once.Do(func() { close(ticked) }) }).
		Return(int64(0), nil)
	svc := NewCleanupService(cleaner, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, 5*time.Millisecond) }()

	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("cleanup never ran")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func TestCleanupService_KeepsRevokedUnexpiredRows(t *testing.T) {
	svc, clock := newSQLiteService(t, Options{})
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, 50, domain.DeviceMetadata{})
	require.NoError(t, err)
	_, err = svc.RevokeAllForSubject(ctx, 50)
	require.NoError(t, err)

	repo := svc.store.(ExpiredTokenCleaner)
	require.NoError(t, NewCleanupService(repo, nil, nil).RunOnce(ctx))

	_, err = svc.Renew(ctx, pair.RefreshToken, domain.DeviceMetadata{})
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)

	clock.Advance(testAccessTTL + time.Second)
	n, err := repo.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the expired access row is removed")
}
