package session

import (
	"time"

	"stockcount/internal/domain/count"
)

// AddLineRequest тело POST /sessions/{id}/products
type AddLineRequest struct {
	Product         *string      `json:"product,omitempty" doc:"ID товара каталога, если уже известен"`
	Nombre          string       `json:"nombre" maxLength:"255" doc:"Название товара"`
	SKU             string       `json:"sku,omitempty" maxLength:"128" doc:"Штрихкод"`
	CantidadContada count.Amount `json:"cantidadContada" doc:"Посчитанное количество, больше нуля"`
	CostoProducto   count.Amount `json:"costoProducto" doc:"Себестоимость единицы, не меньше нуля"`
	ClientRef       string       `json:"clientRef,omitempty" maxLength:"64" doc:"Локальный ID позиции на устройстве, ключ идемпотентности"`
	CapturedAt      *time.Time   `json:"capturedAt,omitempty"`
}

// UpdateLineRequest тело PATCH /sessions/{id}/products/{lineId}
type UpdateLineRequest struct {
	CantidadContada *count.Amount `json:"cantidadContada,omitempty"`
	CostoProducto   *count.Amount `json:"costoProducto,omitempty"`
}

// LineResponse строка сессии в ответе API
type LineResponse struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"sessionId"`
	ProductID       string       `json:"productId"`
	Nombre          string       `json:"nombre"`
	SKU             string       `json:"sku"`
	CantidadContada count.Amount `json:"cantidadContada"`
	CostoProducto   count.Amount `json:"costoProducto"`
	ClientRef       *string      `json:"clientRef,omitempty"`
	Created         bool         `json:"created"`
}

func NewLineResponse(l *Line, created bool) LineResponse {
	return LineResponse{
		ID:              l.ID,
		SessionID:       l.SessionID,
		ProductID:       l.ProductID,
		Nombre:          l.Nombre,
		SKU:             l.SKU,
		CantidadContada: count.NewAmount(l.CantidadContada),
		CostoProducto:   count.NewAmount(l.CostoProducto),
		ClientRef:       l.ClientRef,
		Created:         created,
	}
}
