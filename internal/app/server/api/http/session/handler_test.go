package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api/http/middleware/auth"
	"stockcount/internal/domain/count"
	"stockcount/internal/domain/session"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) AddLine(ctx context.Context, sessionID string, req session.AddLineRequest) (*session.Line, bool, error) {
	args := m.Called(ctx, sessionID, req)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*session.Line), args.Bool(1), args.Error(2)
}

func (m *MockService) UpdateLine(ctx context.Context, sessionID, lineID string, req session.UpdateLineRequest) (*session.Line, error) {
	args := m.Called(ctx, sessionID, lineID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Line), args.Error(1)
}

func (m *MockService) ListLines(ctx context.Context, sessionID string) ([]session.Line, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]session.Line), args.Error(1)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se))
	return se.GetStatus()
}

func TestHandler_addLine(t *testing.T) {
	authCtx := auth.WithDeviceID(context.Background(), "dev-1")
	ref := "0001739000000-abcd1234"

	tests := []struct {
		name       string
		ctx        context.Context
		created    bool
		svcErr     error
		wantStatus int
	}{
		{name: "created", ctx: authCtx, created: true, wantStatus: http.StatusCreated},
		{name: "duplicate clientRef", ctx: authCtx, created: false, wantStatus: http.StatusOK},
		{name: "invalid quantity", ctx: authCtx, svcErr: session.ErrInvalidQuantity, wantStatus: http.StatusUnprocessableEntity},
		{name: "storage failure", ctx: authCtx, svcErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
		{name: "no device", ctx: context.Background(), wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			h := NewHandler(svc, slog.Default(), nil)

			input := &addLineInput{SessionID: "s1"}
			input.Body.Nombre = "Arroz"
			input.Body.CantidadContada = count.NewAmount(decimal.NewFromInt(4))
			input.Body.CostoProducto = count.NewAmount(decimal.NewFromInt(5))
			input.Body.ClientRef = ref

			line := &session.Line{
				ID:              "l1",
				SessionID:       "s1",
				ProductID:       "p1",
				Nombre:          "Arroz",
				CantidadContada: decimal.NewFromInt(4),
				CostoProducto:   decimal.NewFromInt(5),
				ClientRef:       &ref,
			}
			if tt.svcErr != nil {
				svc.On("AddLine", mock.Anything, "s1", input.Body).Return(nil, false, tt.svcErr)
			} else {
				svc.On("AddLine", mock.Anything, "s1", input.Body).Return(line, tt.created, nil)
			}

			out, err := h.addLine(tt.ctx, input)

			if tt.wantStatus >= 400 {
				assert.Nil(t, out)
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, "l1", out.Body.ID)
			assert.Equal(t, tt.created, out.Body.Created)
			assert.True(t, out.Body.CantidadContada.Equal(decimal.NewFromInt(4)))
		})
	}
}

func TestHandler_updateLine(t *testing.T) {
	authCtx := auth.WithDeviceID(context.Background(), "dev-1")
	qty := count.NewAmount(decimal.NewFromInt(7))

	t.Run("Success", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, slog.Default(), nil)
		input := &updateLineInput{SessionID: "s1", LineID: "l1"}
		input.Body.CantidadContada = &qty

		svc.On("UpdateLine", mock.Anything, "s1", "l1", input.Body).
			Return(&session.Line{ID: "l1", CantidadContada: decimal.NewFromInt(7)}, nil)

		out, err := h.updateLine(authCtx, input)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, out.Status)
		assert.True(t, out.Body.CantidadContada.Equal(decimal.NewFromInt(7)))
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, slog.Default(), nil)
		input := &updateLineInput{SessionID: "s1", LineID: "missing"}
		input.Body.CantidadContada = &qty

		svc.On("UpdateLine", mock.Anything, "s1", "missing", input.Body).Return(nil, session.ErrLineNotFound)

		out, err := h.updateLine(authCtx, input)

		assert.Nil(t, out)
		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})
}

func TestHandler_listLines(t *testing.T) {
	svc := new(MockService)
	h := NewHandler(svc, slog.Default(), nil)
	ctx := auth.WithDeviceID(context.Background(), "dev-1")

	svc.On("ListLines", mock.Anything, "s1").Return([]session.Line{
		{ID: "l1", Nombre: "Arroz"},
		{ID: "l2", Nombre: "Frijol"},
	}, nil)

	out, err := h.listLines(ctx, &listLinesInput{SessionID: "s1"})

	require.NoError(t, err)
	assert.Equal(t, 2, out.Body.Total)
	assert.Equal(t, "l2", out.Body.Lines[1].ID)
	svc.AssertExpectations(t)
}
