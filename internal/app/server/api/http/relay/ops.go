package relay

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "connection-requests-create",
		Method:        http.MethodPost,
		Path:          "/connection-requests",
		Summary:       "Создать приглашение коллеги",
		Tags:          []string{"relay"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}

func (h *Handler) syncOp() huma.Operation {
	return huma.Operation{
		OperationID: "connection-requests-sync",
		Method:      http.MethodPost,
		Path:        "/connection-requests/{id}/sync",
		Summary:     "Передать пакет коллеги через сервер",
		Description: "Позиции вливаются в сессию приглашения. Ответ перечисляет результат по каждой позиции; позиции со статусом failed нужно отправить повторно.",
		Tags:        []string{"relay"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
