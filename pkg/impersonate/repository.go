package impersonate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound indicates no log row matched the session id.
	ErrSessionNotFound = errors.New("impersonation session not found")
)

// LogRepository is the consumed interface over the audit store.
type LogRepository interface {
	Create(ctx context.Context, log Log) (Log, error)
	FindBySessionID(ctx context.Context, sessionID string) (Log, error)
	// End sets ended_at on the row, exactly once. Ending an already-ended
	// session returns the row unchanged with a flag saying so.
	End(ctx context.Context, sessionID string, endedAt time.Time) (Log, bool, error)
	// FindOpenByImpersonator returns the log rows for the actor that have no
	// ended_at yet, newest first.
	FindOpenByImpersonator(ctx context.Context, impersonatorID uuid.UUID) ([]Log, error)
	ListByImpersonated(ctx context.Context, impersonatedID uuid.UUID) ([]Log, error)
}
