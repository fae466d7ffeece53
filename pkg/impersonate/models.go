package impersonate

import (
	"time"

	"github.com/google/uuid"
)

// Log is the append-only audit record of one impersonation session. Rows are
// created on start and mutated exactly once, on stop, to set EndedAt. They
// are never deleted.
type Log struct {
	ID             uuid.UUID  `json:"id"`
	ImpersonatorID uuid.UUID  `json:"impersonator_id"`
	ImpersonatedID uuid.UUID  `json:"impersonated_id"`
	SessionID      string     `json:"session_id"`
	// TokenID is the jti of the token issued for this session, kept so the
	// token can be revoked on stop when that policy is enabled.
	TokenID        string     `json:"-"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Session is the caller-facing view of a started impersonation.
type Session struct {
	SessionID      string    `json:"session_id"`
	ImpersonatorID uuid.UUID `json:"impersonator_id"`
	ImpersonatedID uuid.UUID `json:"impersonated_id"`
	Token          string    `json:"token"`
	StartedAt      time.Time `json:"started_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
