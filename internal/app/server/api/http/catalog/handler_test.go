package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api/http/middleware/auth"
	"stockcount/internal/domain/catalog"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ResolveOrCreate(ctx context.Context, name, sku string) (*catalog.Product, bool, error) {
	args := m.Called(ctx, name, sku)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*catalog.Product), args.Bool(1), args.Error(2)
}

func (m *MockService) Resolve(ctx context.Context, name, sku string) (string, error) {
	args := m.Called(ctx, name, sku)
	return args.String(0), args.Error(1)
}

func TestHandler_resolve(t *testing.T) {
	ctx := auth.WithDeviceID(context.Background(), "dev-1")

	t.Run("Success_Created", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, slog.Default(), nil)
		svc.On("ResolveOrCreate", mock.Anything, "Arroz", "").
			Return(&catalog.Product{ID: "p1", Name: "Arroz"}, true, nil)

		out, err := h.resolve(ctx, &resolveInput{Body: resolveRequest{Nombre: "Arroz"}})

		require.NoError(t, err)
		assert.Equal(t, "p1", out.Body.ID)
		assert.True(t, out.Body.Created)
	})

	t.Run("Error_InvalidInput", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, slog.Default(), nil)
		svc.On("ResolveOrCreate", mock.Anything, "", "").Return(nil, false, catalog.ErrInvalidInput)

		out, err := h.resolve(ctx, &resolveInput{})

		assert.Nil(t, out)
		var se huma.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusUnprocessableEntity, se.GetStatus())
	})

	t.Run("Error_Unauthorized", func(t *testing.T) {
		h := NewHandler(nil, slog.Default(), nil)

		out, err := h.resolve(context.Background(), &resolveInput{})

		assert.Nil(t, out)
		assert.Error(t, err)
	})
}
