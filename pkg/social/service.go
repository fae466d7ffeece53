package social

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arden28/guardian/pkg/login"
)

// RoleAssigner grants the default role to accounts created through a social
// flow. Kept as a narrow interface so this package does not depend on the
// authorization store directly.
type RoleAssigner interface {
	AssignRole(ctx context.Context, accountID uuid.UUID, role, guard string) error
}

// Service resolves verified third-party identities to local accounts. A given
// (provider, external id) pair always maps to the same account; the first
// login creates it.
type Service struct {
	providers   map[string]Provider
	accounts    login.AccountRepository
	roles       RoleAssigner
	defaultRole string
	guard       string
}

func NewService(accounts login.AccountRepository, roles RoleAssigner, defaultRole, guard string) *Service {
	return &Service{
		providers:   make(map[string]Provider),
		accounts:    accounts,
		roles:       roles,
		defaultRole: defaultRole,
		guard:       guard,
	}
}

// RegisterProvider adds a provider to the configured set. Later registrations
// under the same name replace earlier ones.
func (s *Service) RegisterProvider(p Provider) {
	s.providers[p.Name()] = p
}

func (s *Service) provider(name string) (Provider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return p, nil
}

// AuthURL returns the redirect URL to start a delegated-auth flow.
func (s *Service) AuthURL(providerName, state string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	rp, ok := p.(RedirectProvider)
	if !ok {
		return "", fmt.Errorf("%w: %s does not support redirect flow", ErrUnsupportedProvider, providerName)
	}
	return rp.AuthURL(state)
}

// Callback completes a redirect flow: the code is exchanged for an identity
// and the identity is resolved to an account.
func (s *Service) Callback(ctx context.Context, providerName, code string) (login.Account, bool, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return login.Account{}, false, err
	}
	rp, ok := p.(RedirectProvider)
	if !ok {
		return login.Account{}, false, fmt.Errorf("%w: %s does not support redirect flow", ErrUnsupportedProvider, providerName)
	}

	identity, err := rp.Exchange(ctx, code)
	if err != nil {
		return login.Account{}, false, err
	}
	return s.resolveAccount(ctx, identity)
}

// PayloadLogin completes a signed-payload flow. Verification happens entirely
// server side; a tampered or stale payload never reaches the account store.
func (s *Service) PayloadLogin(ctx context.Context, providerName string, payload map[string]string) (login.Account, bool, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return login.Account{}, false, err
	}
	pp, ok := p.(PayloadProvider)
	if !ok {
		return login.Account{}, false, fmt.Errorf("%w: %s does not support payload flow", ErrUnsupportedProvider, providerName)
	}

	identity, err := pp.VerifyPayload(payload)
	if err != nil {
		return login.Account{}, false, err
	}
	return s.resolveAccount(ctx, identity)
}

// resolveAccount maps a verified identity to its account, creating one with
// the default role on first login. The created flag is computed exactly once,
// by the store, so a concurrent first login assigns the role only once.
func (s *Service) resolveAccount(ctx context.Context, identity Identity) (login.Account, bool, error) {
	if identity.ExternalID == "" {
		return login.Account{}, false, fmt.Errorf("%w: empty external id", ErrInvalidSignature)
	}

	account, created, err := s.accounts.FindOrCreateBySocialID(ctx, identity.Provider, identity.ExternalID, login.CreateAccountParams{
		Email:          identity.Email,
		Name:           identity.Name,
		IsActive:       true,
		SocialProvider: identity.Provider,
		SocialID:       identity.ExternalID,
	})
	if err != nil {
		return login.Account{}, false, fmt.Errorf("failed to resolve social account: %w", err)
	}

	if created && s.roles != nil {
		if err := s.roles.AssignRole(ctx, account.ID, s.defaultRole, s.guard); err != nil {
			slog.Error("Failed to assign default role to social account",
				"accountId", account.ID, "provider", identity.Provider, "err", err)
			return login.Account{}, false, fmt.Errorf("failed to assign default role: %w", err)
		}
	}

	slog.Info("Social login resolved", "provider", identity.Provider,
		"accountId", account.ID, "created", created)
	return account, created, nil
}
