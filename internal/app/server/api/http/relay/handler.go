package relay

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api/http/middleware/auth"
	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/relay"
)

type Handler struct {
	service    relay.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service relay.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.syncOp(), h.sync)
}

func (h *Handler) create(ctx context.Context, input *createInput) (*createOutput, error) {
	if _, ok := auth.GetDeviceID(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	cr, err := h.service.Create(ctx, input.Body.SessionID)
	if err != nil {
		return nil, h.apiError(err)
	}
	return &createOutput{Body: *cr}, nil
}

func (h *Handler) sync(ctx context.Context, input *syncInput) (*syncOutput, error) {
	deviceID, ok := auth.GetDeviceID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	res, err := h.service.Sync(ctx, input.RequestID, input.Body)
	if err != nil {
		return nil, h.apiError(err)
	}

	h.log.Debug("relay sync", "device", deviceID, "request", input.RequestID, "failed", res.Failed)
	return &syncOutput{Body: *res}, nil
}

func (h *Handler) apiError(err error) error {
	switch {
	case errors.Is(err, relay.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, relay.ErrInvalidInput),
		errors.Is(err, relay.ErrInvalidPayload),
		errors.Is(err, merge.ErrEmptySession):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		h.log.Error("relay request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
