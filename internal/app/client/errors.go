package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"stockcount/internal/app/client/peer"
)

var (
	ErrNotRegistered = errors.New("устройство не зарегистрировано. Выполните: stockcount register")
	ErrNoSession     = errors.New("не задана сессия инвентаризации (SESSION_ID)")
	ErrOffline       = errors.New("сервер недоступен")
	ErrUnknownPeer   = errors.New("неизвестный тип обмена")
)

// RemoteError ответ сервера или сбой сети. Retryable - можно повторить позже без изменений.
type RemoteError struct {
	Status    int
	Message   string
	Retryable bool
	Err       error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("ошибка сети: %s", e.Message)
	}
	return fmt.Sprintf("ошибка сервера %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func networkError(err error) *RemoteError {
	return &RemoteError{Message: err.Error(), Retryable: true, Err: err}
}

func statusError(status int, msg string) *RemoteError {
	retryable := status >= http.StatusInternalServerError ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests
	return &RemoteError{Status: status, Message: msg, Retryable: retryable}
}

// IsRetryable ошибки без классификации считаются временными.
// Отмена контекста и отказ получателя пакета - нет.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, peer.ErrRejected) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return true
}
