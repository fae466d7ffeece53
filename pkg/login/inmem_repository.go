package login

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryAccountRepository implements AccountRepository using in-memory
// storage. Used in tests and single-process deployments.
type InMemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
}

func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts: make(map[uuid.UUID]Account),
	}
}

func (r *InMemoryAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *InMemoryAccountRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *InMemoryAccountRepository) Create(ctx context.Context, params CreateAccountParams) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if params.Email != "" {
		for _, existing := range r.accounts {
			if strings.EqualFold(existing.Email, params.Email) {
				return Account{}, ErrAccountExists
			}
		}
	}

	now := time.Now()
	account := Account{
		ID:             uuid.New(),
		Email:          params.Email,
		Name:           params.Name,
		PasswordHash:   params.PasswordHash,
		IsActive:       params.IsActive,
		SocialProvider: params.SocialProvider,
		SocialID:       params.SocialID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.accounts[account.ID] = account
	return account, nil
}

func (r *InMemoryAccountRepository) Update(ctx context.Context, account Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[account.ID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = time.Now()
	r.accounts[account.ID] = account
	return account, nil
}

func (r *InMemoryAccountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

func (r *InMemoryAccountRepository) FindOrCreateBySocialID(ctx context.Context, provider, externalID string, params CreateAccountParams) (Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.SocialProvider == provider && account.SocialID == externalID {
			return account, false, nil
		}
	}

	now := time.Now()
	account := Account{
		ID:             uuid.New(),
		Email:          params.Email,
		Name:           params.Name,
		PasswordHash:   params.PasswordHash,
		IsActive:       params.IsActive,
		SocialProvider: provider,
		SocialID:       externalID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.accounts[account.ID] = account
	return account, true, nil
}

func (r *InMemoryAccountRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	account.IsActive = false
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// SeedAccount adds an account directly (for testing/initialization).
func (r *InMemoryAccountRepository) SeedAccount(account Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = account
}
