package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	EventTypeSessionLogin   EventType = "session.login"
	EventTypeSessionRefresh EventType = "session.refresh"
	EventTypeSessionLogout  EventType = "session.logout"
	EventTypeSessionUser    EventType = "session.user_update"
)

// Event is a single audit log entry. Tokens are never recorded.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`

	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	DeviceID string `json:"device_id,omitempty"`

	Message string `json:"message,omitempty"`
}
