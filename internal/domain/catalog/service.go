package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"
)

type Servicer interface {
	ResolveOrCreate(ctx context.Context, name, sku string) (*Product, bool, error)
	Resolve(ctx context.Context, name, sku string) (string, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "catalog_service"),
	}
}

// ResolveOrCreate ищет товар по штрихкоду, затем по имени; если не найден, создает.
func (s *Service) ResolveOrCreate(ctx context.Context, name, sku string) (*Product, bool, error) {
	name, sku = strings.TrimSpace(name), strings.TrimSpace(sku)
	if name == "" && sku == "" {
		return nil, false, ErrInvalidInput
	}

	if sku != "" {
		p, err := s.repo.FindBySKU(ctx, sku)
		if err == nil {
			return p, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("find by sku: %w", err)
		}
	}

	if name != "" {
		p, err := s.repo.FindByName(ctx, name)
		if err == nil {
			return p, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("find by name: %w", err)
		}
	}

	if name == "" {
		name = sku
	}

	p, created, err := s.repo.Create(ctx, &Product{Name: name, SKU: sku})
	if err != nil {
		return nil, false, fmt.Errorf("create product: %w", err)
	}
	if created {
		s.log.Info("product created", "id", p.ID, "name", p.Name, "sku", p.SKU)
	}
	return p, created, nil
}

// Resolve возвращает только идентификатор товара
func (s *Service) Resolve(ctx context.Context, name, sku string) (string, error) {
	p, _, err := s.ResolveOrCreate(ctx, name, sku)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}
