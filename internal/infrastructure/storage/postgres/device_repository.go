package postgres

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

type DeviceRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewDeviceRepository(db *Storage, log *slog.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:  db,
		log: log.With("component", "device_repository"),
	}
}

// Save регистрирует устройство; повторная регистрация перевыпускает токен
func (r *DeviceRepository) Save(ctx context.Context, deviceID, name, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO devices (device_id, name, token_hash, expires_at)
         VALUES ($1, $2, decode($3, 'hex'), $4)
         ON CONFLICT (device_id) DO UPDATE
         SET name = EXCLUDED.name, token_hash = EXCLUDED.token_hash, expires_at = EXCLUDED.expires_at`,
		deviceID, name, tokenHash, expiresAt)
	if err != nil {
		r.log.Error("failed to save device", "device", deviceID, "error", err)
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}

func (r *DeviceRepository) Validate(ctx context.Context, tokenHash string) (string, error) {
	var deviceID string
	err := r.db.Pool().QueryRow(ctx,
		`SELECT device_id FROM devices
         WHERE token_hash = decode($1, 'hex') AND expires_at > NOW()`,
		tokenHash).Scan(&deviceID)

	if err != nil {
		return "", fmt.Errorf("invalid token")
	}
	return deviceID, nil
}
