package device

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"stockcount/internal/domain/device"
)

type Handler struct {
	service    device.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service device.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	token, err := h.service.Register(ctx, input.Body.DeviceID, input.Body.Name, input.Body.Secret)
	switch {
	case errors.Is(err, device.ErrInvalidSecret):
		return nil, huma.Error401Unauthorized("invalid pairing secret")
	case errors.Is(err, device.ErrInvalidInput):
		return nil, huma.Error422UnprocessableEntity(err.Error())
	case err != nil:
		h.log.Error("register device", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	return &registerOutput{
		Body: registerResponse{Token: token, Status: "Ok"},
	}, nil
}
