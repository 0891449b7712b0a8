package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"stockcount/internal/domain/catalog"
)

type CatalogRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewCatalogRepository(db *Storage, log *slog.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: log.With("component", "catalog_repository"),
	}
}

const productColumns = `id::text, name, COALESCE(sku, ''), created_at`

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var p catalog.Product
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	return scanProduct(r.db.Pool().QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = $1`, sku))
}

func (r *CatalogRepository) FindByName(ctx context.Context, name string) (*catalog.Product, error) {
	return scanProduct(r.db.Pool().QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE lower(name) = lower($1)
         ORDER BY created_at LIMIT 1`, name))
}

func (r *CatalogRepository) Create(ctx context.Context, p *catalog.Product) (*catalog.Product, bool, error) {
	var sku *string
	if p.SKU != "" {
		sku = &p.SKU
	}

	created, err := scanProduct(r.db.Pool().QueryRow(ctx,
		`INSERT INTO products (name, sku) VALUES ($1, $2)
         ON CONFLICT DO NOTHING
         RETURNING `+productColumns, p.Name, sku))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		r.log.Error("failed to create product", "name", p.Name, "sku", p.SKU, "error", err)
		return nil, false, fmt.Errorf("create product: %w", err)
	}

	// Товар создан параллельным запросом
	var existing *catalog.Product
	if p.SKU != "" {
		existing, err = r.FindBySKU(ctx, p.SKU)
	} else {
		existing, err = r.FindByName(ctx, p.Name)
	}
	if err != nil {
		return nil, false, fmt.Errorf("load existing product: %w", err)
	}
	return existing, false, nil
}
