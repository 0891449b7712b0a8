package count

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item одна посчитанная позиция инвентаризации
type Item struct {
	LocalID      string          `json:"localId" db:"local_id"`
	SessionID    string          `json:"sessionId" db:"session_id"`
	ProductID    *string         `json:"productId,omitempty" db:"product_id"`
	ProductName  string          `json:"productName" db:"product_name"`
	SKU          string          `json:"sku" db:"sku"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	UnitCost     decimal.Decimal `json:"unitCost" db:"unit_cost"`
	CapturedAt   time.Time       `json:"capturedAt" db:"captured_at"`
	SyncState    SyncState       `json:"syncState" db:"sync_state"`
	Origin       Origin          `json:"origin" db:"origin"`
	RemoteLineID *string         `json:"remoteLineId,omitempty" db:"remote_line_id"`
	LastError    *string         `json:"lastError,omitempty" db:"last_error"`
	PeerID       *string         `json:"peerId,omitempty" db:"peer_id"`
	TempID       *string         `json:"tempId,omitempty" db:"temp_id"`
	RelayBatch   *string         `json:"relayBatch,omitempty" db:"relay_batch"`
	Version      int64           `json:"version" db:"version"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// NeedsCostReview нулевая себестоимость допустима, но требует проверки оператором.
func (i *Item) NeedsCostReview() bool {
	return i.UnitCost.IsZero()
}

// Key ключ упорядочивания задач одной позиции.
func (i *Item) Key() string {
	return i.LocalID
}

// AddInput данные новой позиции от пользователя
type AddInput struct {
	SessionID   string          `json:"sessionId" validate:"required"`
	ProductID   *string         `json:"productId,omitempty"`
	ProductName string          `json:"productName" validate:"required_without=SKU,max=255"`
	SKU         string          `json:"sku" validate:"max=128"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	CapturedAt  time.Time       `json:"capturedAt"`
}

// EditInput исправление количества или себестоимости
type EditInput struct {
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	UnitCost *decimal.Decimal `json:"unitCost,omitempty"`
}

// Task задача очереди исходящей синхронизации
type Task struct {
	TaskID        string     `json:"taskId" db:"task_id"`
	Seq           int64      `json:"seq" db:"seq"`
	Kind          TaskKind   `json:"kind" db:"kind"`
	ItemKey       string     `json:"itemKey" db:"item_key"`
	Payload       []byte     `json:"payload" db:"payload"`
	Attempts      int        `json:"attempts" db:"attempts"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty" db:"last_attempt_at"`
	LastError     *string    `json:"lastError,omitempty" db:"last_error"`
}

// Batch пакет позиций от коллеги, ожидающий слияния
type Batch struct {
	ID     string      `json:"id" validate:"required"`
	PeerID string      `json:"peerId" validate:"required"`
	SentAt time.Time   `json:"sentAt"`
	Items  []BatchItem `json:"items" validate:"dive"`
}

// BatchItem позиция пакета с временным идентификатором отправителя
type BatchItem struct {
	TempID      string          `json:"tempId" validate:"required"`
	ProductID   *string         `json:"productId,omitempty"`
	ProductName string          `json:"productName" validate:"required_without=SKU"`
	SKU         string          `json:"sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	CapturedAt  time.Time       `json:"capturedAt"`
}

// ToBatchItem превращает локальную позицию в позицию пакета для передачи коллеге.
func (i *Item) ToBatchItem() BatchItem {
	return BatchItem{
		TempID:      i.LocalID,
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		SKU:         i.SKU,
		Quantity:    i.Quantity,
		UnitCost:    i.UnitCost,
		CapturedAt:  i.CapturedAt,
	}
}
