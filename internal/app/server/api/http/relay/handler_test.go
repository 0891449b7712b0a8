package relay

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
	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/relay"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, sessionID string) (*relay.ConnectionRequest, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.ConnectionRequest), args.Error(1)
}

func (m *MockService) Sync(ctx context.Context, requestID string, req relay.SyncRequest) (*merge.Result, error) {
	args := m.Called(ctx, requestID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*merge.Result), args.Error(1)
}

func TestHandler_create(t *testing.T) {
	ctx := auth.WithDeviceID(context.Background(), "dev-1")
	svc := new(MockService)
	h := NewHandler(svc, slog.Default(), nil)

	svc.On("Create", mock.Anything, "s1").Return(&relay.ConnectionRequest{ID: "cr1", SessionID: "s1"}, nil)

	out, err := h.create(ctx, &createInput{Body: relay.CreateRequest{SessionID: "s1"}})

	require.NoError(t, err)
	assert.Equal(t, "cr1", out.Body.ID)
}

func TestHandler_sync(t *testing.T) {
	ctx := auth.WithDeviceID(context.Background(), "dev-1")
	body := relay.SyncRequest{PeerID: "peer-b", Items: []relay.SyncItem{{TempID: "t1", Nombre: "Arroz"}}}

	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{name: "merged", wantStatus: http.StatusOK},
		{name: "unknown request", svcErr: relay.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "bad payload", svcErr: relay.ErrInvalidPayload, wantStatus: http.StatusUnprocessableEntity},
		{name: "merge failure", svcErr: errors.New("tx aborted"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			h := NewHandler(svc, slog.Default(), nil)

			if tt.svcErr != nil {
				svc.On("Sync", mock.Anything, "cr1", body).Return(nil, tt.svcErr)
			} else {
				svc.On("Sync", mock.Anything, "cr1", body).Return(&merge.Result{
					BatchID:  "b1",
					Inserted: 1,
					Items:    []merge.ItemResult{{TempID: "t1", Outcome: merge.OutcomeInserted, LineID: "l1"}},
				}, nil)
			}

			out, err := h.sync(ctx, &syncInput{RequestID: "cr1", Body: body})

			if tt.svcErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 1, out.Body.Inserted)
				assert.Empty(t, out.Body.FailedTempIDs())
				return
			}
			assert.Nil(t, out)
			var se huma.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStatus, se.GetStatus())
		})
	}
}
