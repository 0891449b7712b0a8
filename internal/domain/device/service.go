package device

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

const tokenTTL = 90 * 24 * time.Hour

type Servicer interface {
	Register(ctx context.Context, deviceID, name, secret string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
}

type Service struct {
	repo       Repository
	secretHash []byte
	log        *slog.Logger
}

// NewService pairingSecretHash - bcrypt-хэш общего секрета сопряжения; пустой хэш отключает проверку
func NewService(repo Repository, pairingSecretHash string, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		secretHash: []byte(pairingSecretHash),
		log:        log.With("component", "device_service"),
	}
}

// Register проверяет секрет сопряжения и выдает устройству bearer-токен
func (s *Service) Register(ctx context.Context, deviceID, name, secret string) (string, error) {
	if strings.TrimSpace(deviceID) == "" {
		return "", ErrInvalidInput
	}

	if len(s.secretHash) > 0 {
		if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)); err != nil {
			s.log.Warn("pairing rejected", "device", deviceID)
			return "", ErrInvalidSecret
		}
	}

	// Генерация токена
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	token := base64.URLEncoding.EncodeToString(tokenBytes)
	tokenHash := sha256.Sum256([]byte(token))

	expiresAt := time.Now().Add(tokenTTL)
	if err := s.repo.Save(ctx, deviceID, name, hex.EncodeToString(tokenHash[:]), expiresAt); err != nil {
		return "", fmt.Errorf("save device: %w", err)
	}

	s.log.Info("device registered", "device", deviceID, "name", name)
	return token, nil
}

// Validate возвращает идентификатор устройства по токену
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	tokenHash := sha256.Sum256([]byte(token))

	deviceID, err := s.repo.Validate(ctx, hex.EncodeToString(tokenHash[:]))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return deviceID, nil
}

// HashSecret готовит значение PAIRING_SECRET_HASH для конфигурации сервера
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}
