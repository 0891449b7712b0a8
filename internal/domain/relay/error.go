package relay

import "errors"

var (
	ErrNotFound       = errors.New("connection request not found")
	ErrInvalidPayload = errors.New("invalid relay payload")
	ErrInvalidInput   = errors.New("invalid relay request")
)
