package session

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) AddLine(ctx context.Context, line *Line) (*Line, bool, error) {
	args := m.Called(ctx, line)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*Line), args.Bool(1), args.Error(2)
}

func (m *MockRepository) UpdateLine(ctx context.Context, sessionID, lineID string, qty, cost *decimal.Decimal) (*Line, error) {
	args := m.Called(ctx, sessionID, lineID, qty, cost)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Line), args.Error(1)
}

func (m *MockRepository) ListLines(ctx context.Context, sessionID string) ([]Line, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Line), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, name, sku string) (string, error) {
	args := m.Called(ctx, name, sku)
	return args.String(0), args.Error(1)
}

func amount(v int64) count.Amount {
	return count.NewAmount(decimal.NewFromInt(v))
}

func TestService_AddLine(t *testing.T) {
	mockRepo := new(MockRepository)
	resolver := new(MockResolver)
	service := NewService(mockRepo, resolver, slog.Default())

	resolver.On("Resolve", mock.Anything, "Widget", "W-1").Return("prod-1", nil)
	mockRepo.On("AddLine", mock.Anything, mock.MatchedBy(func(l *Line) bool {
		return l.ProductID == "prod-1" && l.ClientRef != nil && *l.ClientRef == "0001-ab" &&
			l.CantidadContada.Equal(decimal.NewFromInt(3))
	})).Return(&Line{ID: "line-1", SessionID: "s1", ProductID: "prod-1"}, true, nil)

	line, created, err := service.AddLine(context.Background(), "s1", AddLineRequest{
		Nombre: "Widget", SKU: "W-1", CantidadContada: amount(3), CostoProducto: amount(0), ClientRef: "0001-ab",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "line-1", line.ID)
	mockRepo.AssertExpectations(t)
	resolver.AssertExpectations(t)
}

func TestService_AddLine_KnownProductSkipsResolve(t *testing.T) {
	mockRepo := new(MockRepository)
	resolver := new(MockResolver)
	service := NewService(mockRepo, resolver, slog.Default())

	product := "prod-7"
	mockRepo.On("AddLine", mock.Anything, mock.Anything).Return(&Line{ID: "line-1"}, false, nil)

	_, created, err := service.AddLine(context.Background(), "s1", AddLineRequest{
		Product: &product, Nombre: "Widget", CantidadContada: amount(1), CostoProducto: amount(1), ClientRef: "x",
	})

	require.NoError(t, err)
	assert.False(t, created, "повтор clientRef возвращает существующую строку")
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AddLine_Validation(t *testing.T) {
	tests := []struct {
		name    string
		session string
		req     AddLineRequest
		wantErr error
	}{
		{"zero quantity", "s1", AddLineRequest{Nombre: "W", CantidadContada: amount(0)}, ErrInvalidQuantity},
		{"negative quantity", "s1", AddLineRequest{Nombre: "W", CantidadContada: amount(-3)}, ErrInvalidQuantity},
		{"negative cost", "s1", AddLineRequest{Nombre: "W", CantidadContada: amount(1), CostoProducto: amount(-1)}, ErrInvalidCost},
		{"no name and sku", "s1", AddLineRequest{CantidadContada: amount(1)}, ErrInvalidInput},
		{"empty session", " ", AddLineRequest{Nombre: "W", CantidadContada: amount(1)}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			service := NewService(mockRepo, new(MockResolver), slog.Default())

			_, _, err := service.AddLine(context.Background(), tt.session, tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			mockRepo.AssertNotCalled(t, "AddLine", mock.Anything, mock.Anything)
		})
	}
}

func TestService_AddLine_ResolveError(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, "W", "").Return("", errors.New("database error"))
	service := NewService(new(MockRepository), resolver, slog.Default())

	_, _, err := service.AddLine(context.Background(), "s1", AddLineRequest{Nombre: "W", CantidadContada: amount(1)})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}

func TestService_UpdateLine(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, new(MockResolver), slog.Default())

	qty := amount(5)
	mockRepo.On("UpdateLine", mock.Anything, "s1", "line-1", mock.MatchedBy(func(d *decimal.Decimal) bool {
		return d != nil && d.Equal(decimal.NewFromInt(5))
	}), (*decimal.Decimal)(nil)).Return(&Line{ID: "line-1"}, nil)

	line, err := service.UpdateLine(context.Background(), "s1", "line-1", UpdateLineRequest{CantidadContada: &qty})

	require.NoError(t, err)
	assert.Equal(t, "line-1", line.ID)
	mockRepo.AssertExpectations(t)
}

func TestService_UpdateLine_Errors(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, new(MockResolver), slog.Default())

	_, err := service.UpdateLine(context.Background(), "s1", "line-1", UpdateLineRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	zero := amount(0)
	_, err = service.UpdateLine(context.Background(), "s1", "line-1", UpdateLineRequest{CantidadContada: &zero})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	cost := amount(2)
	mockRepo.On("UpdateLine", mock.Anything, "s1", "missing", (*decimal.Decimal)(nil), mock.Anything).Return(nil, ErrLineNotFound)
	_, err = service.UpdateLine(context.Background(), "s1", "missing", UpdateLineRequest{CostoProducto: &cost})
	assert.ErrorIs(t, err, ErrLineNotFound)
}
