package session

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) addLineOp() huma.Operation {
	return huma.Operation{
		OperationID:   "session-lines-add",
		Method:        http.MethodPost,
		Path:          "/sessions/{id}/products",
		Summary:       "Добавить посчитанную позицию",
		Description:   "Повтор с тем же clientRef возвращает существующую строку с кодом 200.",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}

func (h *Handler) updateLineOp() huma.Operation {
	return huma.Operation{
		OperationID: "session-lines-update",
		Method:      http.MethodPatch,
		Path:        "/sessions/{id}/products/{lineId}",
		Summary:     "Изменить количество или себестоимость",
		Tags:        []string{"sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) listLinesOp() huma.Operation {
	return huma.Operation{
		OperationID: "session-lines-list",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/products",
		Summary:     "Строки сессии",
		Tags:        []string{"sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
