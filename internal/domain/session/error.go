package session

import "errors"

var (
	ErrLineNotFound    = errors.New("session line not found")
	ErrInvalidQuantity = errors.New("cantidadContada must be greater than zero")
	ErrInvalidCost     = errors.New("costoProducto must not be negative")
	ErrInvalidInput    = errors.New("invalid session line")
)
