package catalog

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) resolveOp() huma.Operation {
	return huma.Operation{
		OperationID: "products-resolve",
		Method:      http.MethodPost,
		Path:        "/products/resolve",
		Summary:     "Найти или создать товар",
		Description: "Ищет товар по штрихкоду, затем по названию без учета регистра. Если не найден, создает новый.",
		Tags:        []string{"products"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
