package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered    EventType = "account_registered"
	EventAccountUpdated       EventType = "account_updated"
	EventAccountStatusChanged EventType = "account_status_changed"
	EventAccountDeleted       EventType = "account_deleted"
	EventAccountAuthenticated EventType = "account_authenticated"
)

// Trigger names what caused an event.
type Trigger string

const (
	TriggerRequest Trigger = "request"
	TriggerSweep   Trigger = "sweep"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Trigger   Trigger     `json:"trigger"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.UserStatus `json:"old_status"`
	NewStatus domain.UserStatus `json:"new_status"`
}

// DeletedPayload payload.
type DeletedPayload struct {
	Permanent bool `json:"permanent"`
}
