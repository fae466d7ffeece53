package login

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrAccountNotFound indicates no account matched the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists indicates a unique constraint (email) was violated.
	ErrAccountExists = errors.New("account already exists")
)

// AccountRepository is the consumed interface over the durable account store.
// The backing implementation is configured at startup; the core never depends
// on a concrete store type.
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, params CreateAccountParams) (Account, error)
	Update(ctx context.Context, account Account) (Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	// FindOrCreateBySocialID atomically resolves an account keyed by
	// (provider, externalID), creating it when absent. The returned flag is
	// true exactly when this call created the account.
	FindOrCreateBySocialID(ctx context.Context, provider, externalID string, params CreateAccountParams) (Account, bool, error)
	// Deactivate soft-disables an account. Accounts are never deleted.
	Deactivate(ctx context.Context, id uuid.UUID) error
}
