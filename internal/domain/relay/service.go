package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"

	"stockcount/internal/domain/count"
	"stockcount/internal/domain/merge"
)

type Servicer interface {
	Create(ctx context.Context, sessionID string) (*ConnectionRequest, error)
	Sync(ctx context.Context, requestID string, req SyncRequest) (*merge.Result, error)
}

type Service struct {
	repo      Repository
	merger    merge.Servicer
	validator count.Validator
	log       *slog.Logger
}

func NewService(repo Repository, merger merge.Servicer, validator count.Validator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		merger:    merger,
		validator: validator,
		log:       log.With("component", "relay_service"),
	}
}

func (s *Service) Create(ctx context.Context, sessionID string) (*ConnectionRequest, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	cr, err := s.repo.Create(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("create connection request: %w", err)
	}
	return cr, nil
}

// Sync вливает пакет коллеги в сессию приглашения. Повтор уже влитых позиций ничего не меняет.
func (s *Service) Sync(ctx context.Context, requestID string, req SyncRequest) (*merge.Result, error) {
	cr, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if req.Payload != "" {
		raw, err = base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		var probe count.Batch
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if len(probe.Items) < len(req.Items) {
			return nil, fmt.Errorf("%w: payload has %d items, body has %d", ErrInvalidPayload, len(probe.Items), len(req.Items))
		}
	}

	batch := req.ToBatch()
	if err := s.validator.ValidateBatch(batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.repo.SaveDelivery(ctx, cr.ID, batch.PeerID, batch.ID, raw, len(batch.Items)); err != nil {
		return nil, fmt.Errorf("save delivery: %w", err)
	}

	res, err := s.merger.MergeBatch(ctx, cr.SessionID, batch)
	if err != nil {
		return res, fmt.Errorf("merge batch: %w", err)
	}

	s.log.Info("relay batch processed",
		"request", cr.ID,
		"session", cr.SessionID,
		"peer", batch.PeerID,
		"items", len(batch.Items),
		"failed", res.Failed,
	)

	return res, nil
}
