package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStatusStore struct {
	mock.Mock
}

func (m *mockStatusStore) SetDisabled(ctx context.Context, id int64, disabled bool) error {
	args := m.Called(ctx, id, disabled)
	return args.Error(0)
}

func (m *mockStatusStore) MarkDeleted(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockRevoker struct {
	mock.Mock
}

func (m *mockRevoker) RevokeAllForSubject(ctx context.Context, subjectID int64) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

func TestService_DisableRevokesSessions(t *testing.T) {
	store := new(mockStatusStore)
	revoker := new(mockRevoker)
	store.On("SetDisabled", mock.Anything, int64(7), true).Return(nil)
	revoker.On("RevokeAllForSubject", mock.Anything, int64(7)).Return(int64(3), nil)

	n, err := NewService(store, revoker, zap.NewNop()).Disable(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	store.AssertExpectations(t)
	revoker.AssertExpectations(t)
}

func TestService_DeleteRevokesSessions(t *testing.T) {
	store := new(mockStatusStore)
	revoker := new(mockRevoker)
	store.On("MarkDeleted", mock.Anything, int64(8)).Return(nil)
	revoker.On("RevokeAllForSubject", mock.Anything, int64(8)).Return(int64(2), nil)

	n, err := NewService(store, revoker, nil).Delete(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestService_DisableStoreFailureKeepsSessions(t *testing.T) {
	store := new(mockStatusStore)
	revoker := new(mockRevoker)
	store.On("SetDisabled", mock.Anything, int64(9), true).Return(errors.New("db down"))

	_, err := NewService(store, revoker, nil).Disable(context.Background(), 9)
	assert.Error(t, err)
	revoker.AssertNotCalled(t, "RevokeAllForSubject", mock.Anything, mock.Anything)
}

func TestService_Enable(t *testing.T) {
	store := new(mockStatusStore)
	store.On("SetDisabled", mock.Anything, int64(9), false).Return(nil)

	require.NoError(t, NewService(store, new(mockRevoker), nil).Enable(context.Background(), 9))
	store.AssertExpectations(t)
}
