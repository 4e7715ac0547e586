package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageInput struct {
	Content string `json:"content" binding:"required"`
}

type SendMessageResponse struct {
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PresenceEvent is the payload carried by presence:changed events.
type PresenceEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}
