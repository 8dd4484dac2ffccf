package domain

import "time"

// Session audit actions.
const (
	ActionCreate        = "create"
	ActionLoad          = "load"
	ActionRefresh       = "refresh"
	ActionLogout        = "logout"
	ActionRevokeAll     = "revoke_all"
	ActionHijackAttempt = "hijack_attempt"
	ActionLogin         = "login"
)

// AuditLog is one append-only session audit event. SessionID holds a fingerprint of the
// bearer session id, never the id itself.
type AuditLog struct {
	ID        int64     `json:"id,omitempty"`
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}
