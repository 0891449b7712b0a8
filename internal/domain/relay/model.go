package relay

import "time"

// ConnectionRequest приглашение коллеги присоединиться к сессии через сервер
type ConnectionRequest struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}
