package catalog

import "context"

type Repository interface {
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	// FindByName ищет по имени без учета регистра
	FindByName(ctx context.Context, name string) (*Product, error)
	// Create вставляет товар; при гонке по уникальному ключу возвращает уже созданный и created=false
	Create(ctx context.Context, p *Product) (*Product, bool, error)
}
