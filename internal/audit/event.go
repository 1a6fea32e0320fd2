package audit

import "time"

// EventType classifies a security event.
type EventType string

const (
	EventLogin            EventType = "login"
	EventLogout           EventType = "logout"
	EventAuthFailure      EventType = "auth_failure"
	EventRateLimit        EventType = "rate_limit"
	EventPermissionDenied EventType = "permission_denied"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventLogin, EventLogout, EventAuthFailure, EventRateLimit, EventPermissionDenied:
		return true
	default:
		return false
	}
}

// Metadata keys set by the logger.
const (
	MetaReason           = "reason"
	MetaSuspiciousReason = "suspicious_reason"
	MetaOutcome          = "outcome"
)

// Event is one append-only security record.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Method     string            `json:"method,omitempty"`
	Path       string            `json:"path,omitempty"`
	Suspicious bool              `json:"suspicious"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e Event) clone() Event {
	if e.Metadata == nil {
		return e
	}
	md := make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		md[k] = v
	}
	e.Metadata = md
	return e
}
