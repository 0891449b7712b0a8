package session

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// AddLine вставляет строку; при повторе clientRef возвращает существующую и created=false
	AddLine(ctx context.Context, line *Line) (*Line, bool, error)
	UpdateLine(ctx context.Context, sessionID, lineID string, qty, cost *decimal.Decimal) (*Line, error)
	ListLines(ctx context.Context, sessionID string) ([]Line, error)
}

// ProductResolver находит или создает товар каталога
type ProductResolver interface {
	Resolve(ctx context.Context, name, sku string) (string, error)
}
