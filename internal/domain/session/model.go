package session

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line строка инвентаризационной сессии на сервере
type Line struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"sessionId"`
	ProductID       string          `json:"productId"`
	Nombre          string          `json:"nombre"`
	SKU             string          `json:"sku"`
	CantidadContada decimal.Decimal `json:"cantidadContada"`
	CostoProducto   decimal.Decimal `json:"costoProducto"`
	ClientRef       *string         `json:"clientRef,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
