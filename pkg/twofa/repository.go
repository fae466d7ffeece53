package twofa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSettingNotFound indicates the account has no 2FA setting.
var ErrSettingNotFound = errors.New("2FA setting not found")

// SettingsRepository is the durable store for per-account 2FA configuration.
// Upsert keeps the one-setting-per-account invariant.
type SettingsRepository interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (Setting, error)
	Upsert(ctx context.Context, setting Setting) (Setting, error)
	Disable(ctx context.Context, accountID uuid.UUID) error
	StampVerified(ctx context.Context, accountID uuid.UUID, at time.Time) error
}

// InMemorySettingsRepository implements SettingsRepository with in-memory
// storage, for tests and single-process deployments.
type InMemorySettingsRepository struct {
	mu       sync.RWMutex
	settings map[uuid.UUID]Setting
}

func NewInMemorySettingsRepository() *InMemorySettingsRepository {
	return &InMemorySettingsRepository{
		settings: make(map[uuid.UUID]Setting),
	}
}

func (r *InMemorySettingsRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) (Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	setting, ok := r.settings[accountID]
	if !ok {
		return Setting{}, ErrSettingNotFound
	}
	return setting, nil
}

func (r *InMemorySettingsRepository) Upsert(ctx context.Context, setting Setting) (Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.settings[setting.AccountID]; ok {
		setting.CreatedAt = existing.CreatedAt
	} else {
		setting.CreatedAt = now
	}
	setting.UpdatedAt = now
	r.settings[setting.AccountID] = setting
	return setting, nil
}

// Disable is idempotent: disabling an absent setting is not an error.
func (r *InMemorySettingsRepository) Disable(ctx context.Context, accountID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	setting, ok := r.settings[accountID]
	if !ok {
		return nil
	}
	setting.IsEnabled = false
	setting.Secret = ""
	setting.UpdatedAt = time.Now()
	r.settings[accountID] = setting
	return nil
}

func (r *InMemorySettingsRepository) StampVerified(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	setting, ok := r.settings[accountID]
	if !ok {
		return ErrSettingNotFound
	}
	setting.LastVerifiedAt = &at
	setting.UpdatedAt = at
	r.settings[accountID] = setting
	return nil
}
