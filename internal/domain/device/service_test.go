package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, deviceID, name, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, deviceID, name, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) Validate(ctx context.Context, tokenHash string) (string, error) {
	args := m.Called(ctx, tokenHash)
	return args.String(0), args.Error(1)
}

func TestService_Register(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)

	mockRepo := new(MockRepository)
	service := NewService(mockRepo, hash, slog.Default())

	mockRepo.On("Save", mock.Anything, "dev-a", "Caja 1", mock.MatchedBy(func(h string) bool {
		return len(h) == 64
	}), mock.MatchedBy(func(expiresAt time.Time) bool {
		return expiresAt.After(time.Now())
	})).Return(nil)

	token, err := service.Register(context.Background(), "dev-a", "Caja 1", "s3cret")

	assert.NoError(t, err)
	// base64 encoded 32 bytes should be 44 characters
	assert.Len(t, token, 44)
	mockRepo.AssertExpectations(t)
}

func TestService_Register_WrongSecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)

	mockRepo := new(MockRepository)
	service := NewService(mockRepo, hash, slog.Default())

	_, err = service.Register(context.Background(), "dev-a", "", "wrong")

	assert.ErrorIs(t, err, ErrInvalidSecret)
	mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Register_EmptyDevice(t *testing.T) {
	service := NewService(new(MockRepository), "", slog.Default())

	_, err := service.Register(context.Background(), " ", "", "")

	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_Validate(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, "", slog.Default())

	mockRepo.On("Validate", mock.Anything, mock.AnythingOfType("string")).Return("dev-a", nil).Once()
	deviceID, err := service.Validate(context.Background(), "token")
	assert.NoError(t, err)
	assert.Equal(t, "dev-a", deviceID)

	mockRepo.On("Validate", mock.Anything, mock.AnythingOfType("string")).Return("", errors.New("no rows")).Once()
	_, err = service.Validate(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
