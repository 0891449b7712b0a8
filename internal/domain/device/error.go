package device

import "errors"

var (
	ErrInvalidSecret = errors.New("invalid pairing secret")
	ErrInvalidToken  = errors.New("invalid device token")
	ErrInvalidInput  = errors.New("device id is required")
)
