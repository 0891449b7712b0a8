package merge

import (
	"context"

	"github.com/shopspring/decimal"

	"stockcount/internal/domain/count"
)

// Line строка сессии, в которую может быть влита позиция коллеги
type Line struct {
	ID        string
	ProductID *string
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// ItemTx операции над сессией внутри транзакции одной позиции.
// FindMatching обязан блокировать найденную строку до конца транзакции.
type ItemTx interface {
	AlreadyMerged(ctx context.Context, peerID, tempID string) (bool, error)
	FindMatching(ctx context.Context, sessionID, sku, name string) (*Line, error)
	AddToLine(ctx context.Context, lineID string, quantity, unitCost decimal.Decimal) error
	InsertLine(ctx context.Context, sessionID string, productID *string, item count.BatchItem) (string, error)
	MarkMerged(ctx context.Context, peerID, tempID, lineID string) error
}

// Store открывает транзакцию на одну позицию: либо все изменения позиции применены, либо ни одно.
type Store interface {
	WithinItemTx(ctx context.Context, fn func(tx ItemTx) error) error
}

// ProductResolver находит или создает товар каталога.
// Пустой идентификатор без ошибки означает, что товар будет сопоставлен позже сервером.
type ProductResolver interface {
	Resolve(ctx context.Context, name, sku string) (string, error)
}
