package catalog

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api/http/middleware/auth"
	"stockcount/internal/domain/catalog"
)

type Handler struct {
	service    catalog.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service catalog.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.resolveOp(), h.resolve)
}

func (h *Handler) resolve(ctx context.Context, input *resolveInput) (*resolveOutput, error) {
	if _, ok := auth.GetDeviceID(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	p, created, err := h.service.ResolveOrCreate(ctx, input.Body.Nombre, input.Body.SKU)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidInput) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		h.log.Error("resolve product", "error", err)
		return nil, huma.Error500InternalServerError("internal error")
	}

	return &resolveOutput{
		Body: resolveResponse{
			ID:      p.ID,
			Nombre:  p.Name,
			SKU:     p.SKU,
			Created: created,
		},
	}, nil
}
