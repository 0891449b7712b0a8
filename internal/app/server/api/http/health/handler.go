package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const ServiceName = "stockcount"

type Handler struct {
	log        *slog.Logger
	name       string
	version    string
	middleware huma.Middlewares
}

func NewHandler(log *slog.Logger, name, version string, middleware huma.Middlewares) *Handler {
	return &Handler{
		log:        log,
		name:       name,
		version:    version,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(_ context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	return &Output{
		Body: Response{
			Status:  "OK",
			Service: ServiceName,
			Name:    h.name,
			Version: h.version,
		},
	}, nil
}
