package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindBySKU(ctx context.Context, sku string) (*Product, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockRepository) FindByName(ctx context.Context, name string) (*Product, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Product), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, p *Product) (*Product, bool, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*Product), args.Bool(1), args.Error(2)
}

func TestService_ResolveOrCreate_BySKU(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindBySKU", mock.Anything, "7501").Return(&Product{ID: "p1"}, nil)
	svc := NewService(repo, slog.Default())

	p, created, err := svc.ResolveOrCreate(context.Background(), "Widget", "7501")

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "p1", p.ID)
	repo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
}

func TestService_ResolveOrCreate_FallsBackToName(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindBySKU", mock.Anything, "7501").Return(nil, ErrNotFound)
	repo.On("FindByName", mock.Anything, "Widget").Return(&Product{ID: "p2"}, nil)
	svc := NewService(repo, slog.Default())

	id, err := svc.Resolve(context.Background(), " Widget ", "7501")

	require.NoError(t, err)
	assert.Equal(t, "p2", id)
}

func TestService_ResolveOrCreate_Creates(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindBySKU", mock.Anything, "G-1").Return(nil, ErrNotFound)
	repo.On("FindByName", mock.Anything, "Gadget").Return(nil, ErrNotFound)
	repo.On("Create", mock.Anything, &Product{Name: "Gadget", SKU: "G-1"}).Return(&Product{ID: "p3", Name: "Gadget", SKU: "G-1"}, true, nil)
	svc := NewService(repo, slog.Default())

	p, created, err := svc.ResolveOrCreate(context.Background(), "Gadget", "G-1")

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "p3", p.ID)
	repo.AssertExpectations(t)
}

func TestService_ResolveOrCreate_SKUOnlyUsesSKUAsName(t *testing.T) {
	repo := new(MockRepository)
	repo.On("FindBySKU", mock.Anything, "SKU-1").Return(nil, ErrNotFound)
	repo.On("Create", mock.Anything, &Product{Name: "SKU-1", SKU: "SKU-1"}).Return(&Product{ID: "p4"}, true, nil)
	svc := NewService(repo, slog.Default())

	_, _, err := svc.ResolveOrCreate(context.Background(), "", "SKU-1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestService_ResolveOrCreate_Errors(t *testing.T) {
	svc := NewService(new(MockRepository), slog.Default())
	_, _, err := svc.ResolveOrCreate(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	repo := new(MockRepository)
	repo.On("FindBySKU", mock.Anything, "X").Return(nil, errors.New("database error"))
	svc = NewService(repo, slog.Default())
	_, _, err = svc.ResolveOrCreate(context.Background(), "", "X")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}
