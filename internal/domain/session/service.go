package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	AddLine(ctx context.Context, sessionID string, req AddLineRequest) (*Line, bool, error)
	UpdateLine(ctx context.Context, sessionID, lineID string, req UpdateLineRequest) (*Line, error)
	ListLines(ctx context.Context, sessionID string) ([]Line, error)
}

type Service struct {
	repo     Repository
	products ProductResolver
	log      *slog.Logger
}

func NewService(repo Repository, products ProductResolver, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		products: products,
		log:      log.With("component", "session_service"),
	}
}

// AddLine добавляет посчитанную позицию. Повтор с тем же clientRef не создает дубль.
func (s *Service) AddLine(ctx context.Context, sessionID string, req AddLineRequest) (*Line, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, false, fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Nombre) == "" && strings.TrimSpace(req.SKU) == "" {
		return nil, false, fmt.Errorf("%w: nombre or sku is required", ErrInvalidInput)
	}
	if err := checkAmounts(&req.CantidadContada.Decimal, &req.CostoProducto.Decimal); err != nil {
		return nil, false, err
	}

	productID := ""
	if req.Product != nil {
		productID = *req.Product
	}
	if productID == "" {
		id, err := s.products.Resolve(ctx, req.Nombre, req.SKU)
		if err != nil {
			return nil, false, fmt.Errorf("resolve product: %w", err)
		}
		productID = id
	}

	line := &Line{
		SessionID:       sessionID,
		ProductID:       productID,
		Nombre:          req.Nombre,
		SKU:             req.SKU,
		CantidadContada: req.CantidadContada.Decimal,
		CostoProducto:   req.CostoProducto.Decimal,
	}
	if req.ClientRef != "" {
		ref := req.ClientRef
		line.ClientRef = &ref
	}

	saved, created, err := s.repo.AddLine(ctx, line)
	if err != nil {
		return nil, false, fmt.Errorf("add line: %w", err)
	}

	if !created {
		s.log.Info("duplicate add ignored", "session", sessionID, "client_ref", req.ClientRef, "line", saved.ID)
	}

	return saved, created, nil
}

func (s *Service) UpdateLine(ctx context.Context, sessionID, lineID string, req UpdateLineRequest) (*Line, error) {
	if req.CantidadContada == nil && req.CostoProducto == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	var qty, cost *decimal.Decimal
	if req.CantidadContada != nil {
		qty = &req.CantidadContada.Decimal
	}
	if req.CostoProducto != nil {
		cost = &req.CostoProducto.Decimal
	}
	if err := checkAmounts(qty, cost); err != nil {
		return nil, err
	}

	line, err := s.repo.UpdateLine(ctx, sessionID, lineID, qty, cost)
	if err != nil {
		return nil, fmt.Errorf("update line: %w", err)
	}
	return line, nil
}

func (s *Service) ListLines(ctx context.Context, sessionID string) ([]Line, error) {
	return s.repo.ListLines(ctx, sessionID)
}

func checkAmounts(qty, cost *decimal.Decimal) error {
	if qty != nil && !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	if cost != nil && cost.IsNegative() {
		return ErrInvalidCost
	}
	return nil
}
