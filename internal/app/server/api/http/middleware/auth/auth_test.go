package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

type MockDevices struct {
	mock.Mock
}

func (m *MockDevices) Register(ctx context.Context, deviceID, name, secret string) (string, error) {
	args := m.Called(ctx, deviceID, name, secret)
	return args.String(0), args.Error(1)
}

func (m *MockDevices) Validate(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func TestAuth_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validateOK bool
		wantStatus int
		wantDevice string
	}{
		{name: "valid token", header: "Bearer good", validateOK: true, wantStatus: http.StatusOK, wantDevice: "dev-1"},
		{name: "unknown token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := new(MockDevices)
			if tt.validateOK {
				devices.On("Validate", mock.Anything, "good").Return("dev-1", nil)
			} else {
				devices.On("Validate", mock.Anything, mock.Anything).Return("", errors.New("invalid token"))
			}
			mw := New(devices, slog.Default()).Middleware()

			req := httptest.NewRequest(http.MethodGet, "/sessions/s1/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ctx := humatest.NewContext(nil, req, rec)

			var gotDevice string
			called := false
			mw(ctx, func(next huma.Context) {
				called = true
				gotDevice, _ = GetDeviceID(next.Context())
			})

			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, tt.wantDevice, gotDevice)
				return
			}
			assert.False(t, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
		})
	}
}
