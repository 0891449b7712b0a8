package postgres

import (
	"context"
	"fmt"

	"golang.org/x/exp/slog"

	"stockcount/internal/domain/relay"
)

type RelayRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewRelayRepository(db *Storage, log *slog.Logger) *RelayRepository {
	return &RelayRepository{
		db:  db,
		log: log.With("component", "relay_repository"),
	}
}

func (r *RelayRepository) Create(ctx context.Context, sessionID string) (*relay.ConnectionRequest, error) {
	cr := relay.ConnectionRequest{SessionID: sessionID}
	err := r.db.Pool().QueryRow(ctx,
		`INSERT INTO connection_requests (session_id) VALUES ($1) RETURNING id::text, created_at`,
		sessionID).Scan(&cr.ID, &cr.CreatedAt)
	if err != nil {
		r.log.Error("failed to create connection request", "session", sessionID, "error", err)
		return nil, fmt.Errorf("create connection request: %w", err)
	}
	return &cr, nil
}

func (r *RelayRepository) Get(ctx context.Context, id string) (*relay.ConnectionRequest, error) {
	var cr relay.ConnectionRequest
	err := r.db.Pool().QueryRow(ctx,
		`SELECT id::text, session_id, created_at FROM connection_requests WHERE id::text = $1`,
		id).Scan(&cr.ID, &cr.SessionID, &cr.CreatedAt)
	if isNoRows(err) {
		return nil, relay.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection request: %w", err)
	}
	return &cr, nil
}

func (r *RelayRepository) SaveDelivery(ctx context.Context, requestID, peerID, batchID string, payload []byte, items int) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO relay_deliveries (request_id, peer_id, batch_id, payload, items)
         VALUES ($1::uuid, $2, $3, $4, $5)`,
		requestID, peerID, batchID, payload, items)
	if err != nil {
		return fmt.Errorf("save delivery: %w", err)
	}
	return nil
}
