package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"stockcount/internal/domain/merge"
	"stockcount/internal/domain/relay"
	"stockcount/internal/domain/session"
)

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(baseURL string, timeout time.Duration, log *slog.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 4,
		},
	}

	return &httpClient{
		client:    client,
		log:       log.With("component", "http_client"),
		baseURL:   baseURL,
		userAgent: "Stockcount-Client/1.0",
	}
}

// SetToken устанавливает токен устройства
func (h *httpClient) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

func (h *httpClient) HasToken() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token != ""
}

// Health проверяет доступность сервера
func (h *httpClient) Health(ctx context.Context) (*HealthInfo, error) {
	var info HealthInfo
	if err := h.do(ctx, http.MethodGet, "/health", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RegisterDevice получает токен устройства по секрету сопряжения
func (h *httpClient) RegisterDevice(ctx context.Context, deviceID, name, secret string) (string, error) {
	var resp registerResponse
	err := h.do(ctx, http.MethodPost, "/devices/register",
		registerRequest{DeviceID: deviceID, Name: name, Secret: secret}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// AddLine добавляет позицию в сессию; повтор с тем же clientRef вернет существующую строку
func (h *httpClient) AddLine(ctx context.Context, sessionID string, req session.AddLineRequest) (*session.LineResponse, error) {
	var line session.LineResponse
	path := "/sessions/" + url.PathEscape(sessionID) + "/products"
	if err := h.do(ctx, http.MethodPost, path, req, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// UpdateLine исправляет количество или себестоимость уже созданной строки
func (h *httpClient) UpdateLine(ctx context.Context, sessionID, lineID string, req session.UpdateLineRequest) (*session.LineResponse, error) {
	var line session.LineResponse
	path := "/sessions/" + url.PathEscape(sessionID) + "/products/" + url.PathEscape(lineID)
	if err := h.do(ctx, http.MethodPatch, path, req, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// ResolveProduct находит или создает товар каталога
func (h *httpClient) ResolveProduct(ctx context.Context, name, sku string) (string, error) {
	var resp resolveProductResponse
	err := h.do(ctx, http.MethodPost, "/products/resolve", resolveProductRequest{Nombre: name, SKU: sku}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RelaySync передает пакет коллеги через сервер
func (h *httpClient) RelaySync(ctx context.Context, requestID string, req relay.SyncRequest) (*merge.Result, error) {
	var res merge.Result
	path := "/connection-requests/" + url.PathEscape(requestID) + "/sync"
	if err := h.do(ctx, http.MethodPost, path, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *httpClient) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	h.mu.RLock()
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	h.mu.RUnlock()

	h.log.Debug("Отправка запроса", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(fmt.Errorf("ошибка чтения ответа: %w", err))
	}

	h.log.Debug("Получен ответ", "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode >= 400 {
		var eb errorBody
		msg := http.StatusText(resp.StatusCode)
		if err := json.Unmarshal(data, &eb); err == nil && eb.message() != "" {
			msg = eb.message()
		}
		return statusError(resp.StatusCode, msg)
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}
	return nil
}
