package count

import "errors"

var (
	ErrNotFound        = errors.New("counted item not found")
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrInvalidCost     = errors.New("unit cost must not be negative")
	ErrInvalidInput    = errors.New("invalid counted item input")
	ErrTaskNotFound    = errors.New("sync task not found")
	ErrSessionOpen     = errors.New("session still has unsynced items")
)
