// Package peer способы передать пакет позиций другому устройству без сервера
// или через сервер-посредник. Слияние принятого пакета от способа передачи не зависит.
package peer

import (
	"context"
	"errors"
	"net"
	"strconv"

	"stockcount/internal/domain/count"
)

type Kind string

const (
	KindBLE   Kind = "ble"
	KindLAN   Kind = "lan"
	KindRelay Kind = "relay"
)

func (k Kind) Validate() error {
	switch k {
	case KindBLE, KindLAN, KindRelay:
		return nil
	}
	return ErrUnknownKind
}

var (
	ErrUnknownKind    = errors.New("неизвестный тип обмена")
	ErrNotSupported   = errors.New("операция не поддерживается этим типом обмена")
	ErrTransferFailed = errors.New("передача прервана")
	ErrRejected       = errors.New("пакет отклонен получателем")
)

// Peer найденный получатель. Для сети заполнены IP и Port, для BLE - ID устройства.
// Живет только в пределах одного поиска.
type Peer struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	IP      string `json:"ip,omitempty"`
	Port    int    `json:"port,omitempty"`
	Version string `json:"version,omitempty"`
}

func (p Peer) Address() string {
	if p.IP == "" {
		return p.ID
	}
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// Ack ответ получателя. Accepted - временные идентификаторы, которые получатель сохранил
// или уже влил; Failed нужно отправить повторно.
type Ack struct {
	BatchID  string   `json:"batchId"`
	Accepted []string `json:"accepted"`
	Failed   []string `json:"failed,omitempty"`
}

// AckAll подтверждает весь пакет
func AckAll(b count.Batch) Ack {
	ack := Ack{BatchID: b.ID, Accepted: make([]string, 0, len(b.Items))}
	for _, it := range b.Items {
		ack.Accepted = append(ack.Accepted, it.TempID)
	}
	return ack
}

// Handler принимает собранный пакет на стороне получателя
type Handler func(ctx context.Context, batch count.Batch) (Ack, error)

type Adapter interface {
	Kind() Kind
	// Discover вызывает found для каждого найденного получателя и возвращается
	// по окончании поиска или отмене ctx.
	Discover(ctx context.Context, found func(Peer)) error
	Send(ctx context.Context, p Peer, batch count.Batch) (Ack, error)
	// Receive блокируется до отмены ctx.
	Receive(ctx context.Context, onBatch Handler) error
}
