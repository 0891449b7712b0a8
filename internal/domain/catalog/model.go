package catalog

import "time"

// Product товар каталога
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	SKU       string    `json:"sku,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
