package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRejected  EventType = "token_rejected"
	EventAccessDenied   EventType = "access_denied"
)

// Actor describes who triggered an event. Subject is empty for anonymous callers.
type Actor struct {
	Subject  string `json:"subject,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
}

// Event represents an authentication or authorization outcome.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, requestID string, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RequestID: requestID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LoginSucceededPayload payload.
type LoginSucceededPayload struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginFailedPayload payload. Reason is internal and never sent to clients.
type LoginFailedPayload struct {
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason"`
}

// TokenRejectedPayload payload.
type TokenRejectedPayload struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// AccessDeniedPayload payload.
type AccessDeniedPayload struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Decision string `json:"decision"`
}
