package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"stockcount/internal/app/server/api/http/middleware/auth"
	"stockcount/internal/domain/catalog"
	"stockcount/internal/domain/session"
)

type Handler struct {
	service    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service session.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.addLineOp(), h.addLine)
	huma.Register(api, h.updateLineOp(), h.updateLine)
	huma.Register(api, h.listLinesOp(), h.listLines)
}

func (h *Handler) addLine(ctx context.Context, input *addLineInput) (*lineOutput, error) {
	deviceID, ok := auth.GetDeviceID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	line, created, err := h.service.AddLine(ctx, input.SessionID, input.Body)
	if err != nil {
		return nil, h.apiError(err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Debug("line added", "device", deviceID, "session", input.SessionID, "line", line.ID)
	}

	return &lineOutput{
		Status: status,
		Body:   session.NewLineResponse(line, created),
	}, nil
}

func (h *Handler) updateLine(ctx context.Context, input *updateLineInput) (*lineOutput, error) {
	if _, ok := auth.GetDeviceID(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	line, err := h.service.UpdateLine(ctx, input.SessionID, input.LineID, input.Body)
	if err != nil {
		return nil, h.apiError(err)
	}

	return &lineOutput{
		Status: http.StatusOK,
		Body:   session.NewLineResponse(line, false),
	}, nil
}

func (h *Handler) listLines(ctx context.Context, input *listLinesInput) (*listLinesOutput, error) {
	if _, ok := auth.GetDeviceID(ctx); !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}

	lines, err := h.service.ListLines(ctx, input.SessionID)
	if err != nil {
		return nil, h.apiError(err)
	}

	resp := listResponse{
		Lines: make([]session.LineResponse, 0, len(lines)),
		Total: len(lines),
	}
	for i := range lines {
		resp.Lines = append(resp.Lines, session.NewLineResponse(&lines[i], false))
	}

	return &listLinesOutput{Body: resp}, nil
}

// apiError 4xx для ошибок клиента (устройство не повторяет), 5xx для остального
func (h *Handler) apiError(err error) error {
	switch {
	case errors.Is(err, session.ErrLineNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, session.ErrInvalidQuantity),
		errors.Is(err, session.ErrInvalidCost),
		errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, catalog.ErrInvalidInput):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		h.log.Error("session request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
