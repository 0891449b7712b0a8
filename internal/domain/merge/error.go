package merge

import "errors"

var (
	ErrEmptySession = errors.New("session id is required")

	errProductRequired = errors.New("product must be resolved before insert")
)
