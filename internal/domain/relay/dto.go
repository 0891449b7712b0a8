package relay

import (
	"time"

	"stockcount/internal/domain/count"
)

// CreateRequest тело POST /connection-requests
type CreateRequest struct {
	SessionID string `json:"sessionId" minLength:"1" doc:"Сессия, к которой присоединяется коллега"`
}

// SyncRequest тело POST /connection-requests/{id}/sync
type SyncRequest struct {
	BatchID string     `json:"batchId,omitempty" doc:"ID пакета отправителя"`
	PeerID  string     `json:"peerId" minLength:"1" doc:"ID устройства-отправителя"`
	SentAt  time.Time  `json:"sentAt"`
	Payload string     `json:"payload,omitempty" doc:"Пакет целиком, base64(JSON)"`
	Items   []SyncItem `json:"items" doc:"Позиции пакета"`
}

// SyncItem позиция пакета в API
type SyncItem struct {
	TempID          string       `json:"tempId" minLength:"1"`
	Product         *string      `json:"product,omitempty"`
	Nombre          string       `json:"nombre"`
	SKU             string       `json:"sku,omitempty"`
	CantidadContada count.Amount `json:"cantidadContada"`
	CostoProducto   count.Amount `json:"costoProducto"`
	CapturedAt      time.Time    `json:"capturedAt,omitempty"`
}

// ToBatch переводит запрос в доменный пакет
func (r SyncRequest) ToBatch() count.Batch {
	b := count.Batch{
		ID:     r.BatchID,
		PeerID: r.PeerID,
		SentAt: r.SentAt,
		Items:  make([]count.BatchItem, 0, len(r.Items)),
	}
	if b.ID == "" {
		b.ID = r.PeerID + "@" + r.SentAt.UTC().Format(time.RFC3339Nano)
	}
	for _, it := range r.Items {
		b.Items = append(b.Items, count.BatchItem{
			TempID:      it.TempID,
			ProductID:   it.Product,
			ProductName: it.Nombre,
			SKU:         it.SKU,
			Quantity:    it.CantidadContada.Decimal,
			UnitCost:    it.CostoProducto.Decimal,
			CapturedAt:  it.CapturedAt,
		})
	}
	return b
}

// NewSyncRequest собирает запрос из доменного пакета
func NewSyncRequest(b count.Batch, payload string) SyncRequest {
	req := SyncRequest{
		BatchID: b.ID,
		PeerID:  b.PeerID,
		SentAt:  b.SentAt,
		Payload: payload,
		Items:   make([]SyncItem, 0, len(b.Items)),
	}
	for _, it := range b.Items {
		req.Items = append(req.Items, SyncItem{
			TempID:          it.TempID,
			Product:         it.ProductID,
			Nombre:          it.ProductName,
			SKU:             it.SKU,
			CantidadContada: count.NewAmount(it.Quantity),
			CostoProducto:   count.NewAmount(it.UnitCost),
			CapturedAt:      it.CapturedAt,
		})
	}
	return req
}
