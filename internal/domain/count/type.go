package count

import "fmt"

// SyncState состояние синхронизации позиции
type SyncState string

const (
	StatePending  SyncState = "pending"
	StateInFlight SyncState = "in-flight"
	StateSynced   SyncState = "synced"
	StateError    SyncState = "error"
)

// Validate проверяет, что состояние входит в допустимый набор.
func (s SyncState) Validate() error {
	switch s {
	case StatePending, StateInFlight, StateSynced, StateError:
		return nil
	}
	return fmt.Errorf("неверное состояние синхронизации: %s", s)
}

// IsOpen сообщает, ждёт ли позиция доставки на сервер.
func (s SyncState) IsOpen() bool {
	return s == StatePending || s == StateInFlight
}

func (s SyncState) String() string {
	return string(s)
}

// Origin откуда пришла позиция
type Origin string

const (
	OriginSelf         Origin = "self"
	OriginCollaborator Origin = "collaborator"
)

func (o Origin) Validate() error {
	switch o {
	case OriginSelf, OriginCollaborator:
		return nil
	}
	return fmt.Errorf("неверный источник позиции: %s", o)
}

// TaskKind тип задачи в очереди отправки
type TaskKind string

const (
	TaskAddCount          TaskKind = "add-count"
	TaskUpdateCount       TaskKind = "update-count"
	TaskRelaySend         TaskKind = "send-to-collaborator-relay"
	TaskMergeCollaborator TaskKind = "merge-collaborator"
)

func (k TaskKind) String() string {
	return string(k)
}

// DisplayName возвращает человекочитаемое название задачи.
func (k TaskKind) DisplayName() string {
	switch k {
	case TaskAddCount:
		return "Отправка позиции"
	case TaskUpdateCount:
		return "Исправление позиции"
	case TaskRelaySend:
		return "Передача через сервер"
	case TaskMergeCollaborator:
		return "Слияние данных коллеги"
	default:
		return "Неизвестная задача"
	}
}
