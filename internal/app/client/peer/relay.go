package peer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/relay"
)

// RelayClient вызов сервера, через который идет обмен
type RelayClient interface {
	RelaySync(ctx context.Context, requestID string, req relay.SyncRequest) (*merge.Result, error)
}

// Relay передает пакет коллеге через сервер по ранее выданному приглашению.
// Сервер сам вливает пакет в сессию, поэтому Receive не поддерживается.
type Relay struct {
	client    RelayClient
	requestID string
	log       *slog.Logger
}

func NewRelay(client RelayClient, connectionRequestID string, log *slog.Logger) *Relay {
	return &Relay{
		client:    client,
		requestID: connectionRequestID,
		log:       log.With("component", "relay_adapter"),
	}
}

func (r *Relay) Kind() Kind {
	return KindRelay
}

// Discover единственный получатель - приглашение на сервере, если оно задано
func (r *Relay) Discover(_ context.Context, found func(Peer)) error {
	if r.requestID == "" {
		return nil
	}
	found(r.Peer())
	return nil
}

func (r *Relay) Peer() Peer {
	return Peer{Kind: KindRelay, ID: r.requestID, Name: "Сервер"}
}

// Send ошибки клиента возвращаются как есть: по ним решается, повторять ли отправку
func (r *Relay) Send(ctx context.Context, p Peer, batch count.Batch) (Ack, error) {
	requestID := p.ID
	if requestID == "" {
		requestID = r.requestID
	}
	if requestID == "" {
		return Ack{}, fmt.Errorf("%w: не задано приглашение CONNECTION_REQUEST_ID", ErrRejected)
	}

	raw, err := json.Marshal(batch)
	if err != nil {
		return Ack{}, fmt.Errorf("ошибка кодирования пакета: %w", err)
	}

	res, err := r.client.RelaySync(ctx, requestID, relay.NewSyncRequest(batch, base64.StdEncoding.EncodeToString(raw)))
	if err != nil {
		return Ack{}, err
	}

	ack := Ack{BatchID: batch.ID}
	for _, it := range res.Items {
		if it.Outcome == merge.OutcomeFailed {
			ack.Failed = append(ack.Failed, it.TempID)
			continue
		}
		ack.Accepted = append(ack.Accepted, it.TempID)
	}

	r.log.Info("Пакет передан через сервер",
		"request", requestID,
		"batch", batch.ID,
		"matched", res.Matched,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return ack, nil
}

func (r *Relay) Receive(context.Context, Handler) error {
	return ErrNotSupported
}
