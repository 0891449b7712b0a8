package device

import (
	"context"
	"time"
)

type Repository interface {
	Save(ctx context.Context, deviceID, name, tokenHash string, expiresAt time.Time) error
	Validate(ctx context.Context, tokenHash string) (string, error)
}
