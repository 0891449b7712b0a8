package relay

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, sessionID string) (*ConnectionRequest, error)
	Get(ctx context.Context, id string) (*ConnectionRequest, error)
	// SaveDelivery журнал принятых пакетов: сырое тело хранится для разбора инцидентов
	SaveDelivery(ctx context.Context, requestID, peerID, batchID string, payload []byte, items int) error
}
