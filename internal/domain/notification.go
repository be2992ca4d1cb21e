package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an immutable outcome message shown to the viewer until
// dismissed.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewNotification creates a notification with a fresh id
func NewNotification(message string) Notification {
	return Notification{
		ID:        uuid.New(),
		Message:   message,
		CreatedAt: time.Now(),
	}
}
