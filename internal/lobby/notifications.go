package lobby

import (
	"sync"

	"github.com/dom/chess-lobby-client/internal/domain"
)

// Notifications is an append-only, dismissible log of outcome messages.
// Dismissal indexes the live slice so it stays correct when events
// append concurrently with a dismiss issued against an older view.
type Notifications struct {
	mu    sync.RWMutex
	items []domain.Notification
}

// NewNotifications creates an empty notification log
func NewNotifications() *Notifications {
	return &Notifications{}
}

// Push appends a new message to the log
func (n *Notifications) Push(message string) domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	notif := domain.NewNotification(message)
	n.items = append(n.items, notif)
	return notif
}

// Dismiss removes the notification at the given index in insertion
// order. Out-of-range indices are a no-op.
func (n *Notifications) Dismiss(index int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if index < 0 || index >= len(n.items) {
		return
	}
	n.items = append(n.items[:index], n.items[index+1:]...)
}

// Clear drops every notification
func (n *Notifications) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = nil
}

// List returns a snapshot in insertion order
func (n *Notifications) List() []domain.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()

	result := make([]domain.Notification, len(n.items))
	copy(result, n.items)
	return result
}

// Len returns the number of undismissed notifications
func (n *Notifications) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.items)
}
