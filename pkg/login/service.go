package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrInvalidCredentials is returned for every failed credential check:
	// unknown identifier, wrong password, and disabled account are
	// indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBackendUnavailable indicates the account store itself failed.
	ErrBackendUnavailable = errors.New("account store unavailable")
)

// Service verifies password credentials against the account store.
type Service struct {
	repo   AccountRepository
	hasher PasswordHasher
}

func NewService(repo AccountRepository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// Repository exposes the underlying account store for collaborators that
// resolve accounts directly (social login, impersonation).
func (s *Service) Repository() AccountRepository {
	return s.repo
}

// Hasher exposes the configured password hasher.
func (s *Service) Hasher() PasswordHasher {
	return s.hasher
}

// VerifyCredentials looks up the account by email and compares the password
// against the stored hash. All failure modes surface as ErrInvalidCredentials
// so the response never signals whether the account exists.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if !account.IsActive {
		slog.Warn("Login attempt on inactive account", "accountId", account.ID)
		return Account{}, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return Account{}, fmt.Errorf("error checking password: %w", err)
	}
	if !valid {
		return Account{}, ErrInvalidCredentials
	}

	return account, nil
}
