package device

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID: "device-register",
		Method:      http.MethodPost,
		Path:        "/devices/register",
		Summary:     "Регистрация устройства",
		Description: "Выдает bearer-токен устройству, знающему секрет сопряжения.",
		Tags:        []string{"devices"},
		Middlewares: h.middleware,
	}
}
