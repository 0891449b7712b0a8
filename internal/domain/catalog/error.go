package catalog

import "errors"

var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidInput = errors.New("nombre or sku is required")
)
