package guardian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arden28/guardian/pkg/login"
	"github.com/arden28/guardian/pkg/social"
	"github.com/arden28/guardian/pkg/token"
	"github.com/arden28/guardian/pkg/twofa"
)


// LoginResult is the outcome of a credential login. Either Token is set, or
// RequiresTwoFactor is true and no token exists yet.
type LoginResult struct {
	Account           login.Account `json:"account"`
	Token             string        `json:"token,omitempty"`
	RequiresTwoFactor bool          `json:"requires_two_factor"`
	TwoFactorMethod   twofa.Method  `json:"two_factor_method,omitempty"`
}

// RoleAssigner grants the default role to newly registered accounts.
type RoleAssigner interface {
	AssignRole(ctx context.Context, accountID uuid.UUID, role, guard string) error
}

// Config carries the facade's role defaults.
type Config struct {
	DefaultRole string
	Guard       string
}

func (c *Config) applyDefaults() {
	if c.DefaultRole == "" {
		c.DefaultRole = "user"
	}
	if c.Guard == "" {
		c.Guard = "web"
	}
}

// Service orchestrates the full authentication flow: credential and social
// login, the 2FA gate, registration, and session lifecycle.
type Service struct {
	logins  *login.Service
	twofa   *twofa.Service
	social  *social.Service
	tokens  *token.Service
	roles   RoleAssigner
	pending *PendingLoginStore
	config  Config
	hooks   []LoginHook
}

func NewService(logins *login.Service, twofaSvc *twofa.Service, socialSvc *social.Service, tokens *token.Service, roles RoleAssigner, pending *PendingLoginStore, config Config) *Service {
	config.applyDefaults()
	return &Service{
		logins:  logins,
		twofa:   twofaSvc,
		social:  socialSvc,
		tokens:  tokens,
		roles:   roles,
		pending: pending,
		config:  config,
	}
}

// AddHook registers a post-login hook. Hooks run synchronously in
// registration order.
func (s *Service) AddHook(hook LoginHook) {
	s.hooks = append(s.hooks, hook)
}

func (s *Service) fireHooks(ctx context.Context, event LoginEvent) {
	for _, hook := range s.hooks {
		if err := hook.OnLogin(ctx, event); err != nil {
			slog.Error("Login hook failed", "accountId", event.Account.ID, "err", err)
		}
	}
}

// Login verifies the credentials. When the account has 2FA enabled, a code is
// dispatched (for email/sms) and no token is minted until the second factor
// verifies; otherwise the session token is issued immediately.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	account, err := s.logins.VerifyCredentials(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	enabled, err := s.twofa.IsEnabled(ctx, account.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if enabled {
		setting, err := s.twofa.Setting(ctx, account.ID)
		if err != nil {
			return LoginResult{}, err
		}
		if err := s.twofa.SendCode(ctx, account.ID, account.Email); err != nil {
			return LoginResult{}, err
		}
		// The credential check passed; record it so CompleteTwoFactor can
		// require it. Nothing but this ticket ties the two calls together.
		if err := s.pending.Create(ctx, account.ID); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{
			Account:           account,
			RequiresTwoFactor: true,
			TwoFactorMethod:   setting.Method,
		}, nil
	}

	signed, err := s.tokens.Issue(ctx, account.ID, token.IssueOptions{})
	if err != nil {
		return LoginResult{}, err
	}

	s.fireHooks(ctx, LoginEvent{Account: account, Method: "password"})
	return LoginResult{Account: account, Token: signed}, nil
}

// CompleteTwoFactor finishes a 2FA-gated login. It requires both a live
// pending-login ticket (proof the password verified moments ago) and a valid
// code; TOTP in particular has no server-issued challenge, so without the
// ticket a current code alone would be a single factor.
func (s *Service) CompleteTwoFactor(ctx context.Context, email, code string) (LoginResult, error) {
	account, err := s.logins.Repository().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, login.ErrAccountNotFound) {
			return LoginResult{}, login.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("%w: %v", login.ErrBackendUnavailable, err)
	}
	if !account.IsActive {
		return LoginResult{}, login.ErrInvalidCredentials
	}

	verified, err := s.pending.Exists(ctx, account.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if !verified {
		return LoginResult{}, ErrNoPendingLogin
	}

	setting, err := s.twofa.Setting(ctx, account.ID)
	if err != nil {
		if errors.Is(err, twofa.ErrSettingNotFound) {
			return LoginResult{}, twofa.ErrNotEnabled
		}
		return LoginResult{}, err
	}
	if err := s.twofa.VerifyCode(ctx, account.ID, setting.Method, code); err != nil {
		return LoginResult{}, err
	}

	if err := s.pending.Consume(ctx, account.ID); err != nil {
		return LoginResult{}, err
	}

	signed, err := s.tokens.Issue(ctx, account.ID, token.IssueOptions{})
	if err != nil {
		return LoginResult{}, err
	}

	s.fireHooks(ctx, LoginEvent{Account: account, Method: "2fa"})
	return LoginResult{Account: account, Token: signed}, nil
}

// SocialLogin completes a redirect-flow social login and issues a token.
func (s *Service) SocialLogin(ctx context.Context, provider, code string) (LoginResult, error) {
	account, created, err := s.social.Callback(ctx, provider, code)
	if err != nil {
		return LoginResult{}, err
	}
	return s.finishSocial(ctx, account, provider, created)
}

// SocialPayloadLogin completes a signed-payload social login (Telegram style)
// and issues a token.
func (s *Service) SocialPayloadLogin(ctx context.Context, provider string, payload map[string]string) (LoginResult, error) {
	account, created, err := s.social.PayloadLogin(ctx, provider, payload)
	if err != nil {
		return LoginResult{}, err
	}
	return s.finishSocial(ctx, account, provider, created)
}

func (s *Service) finishSocial(ctx context.Context, account login.Account, provider string, created bool) (LoginResult, error) {
	signed, err := s.tokens.Issue(ctx, account.ID, token.IssueOptions{})
	if err != nil {
		return LoginResult{}, err
	}
	s.fireHooks(ctx, LoginEvent{Account: account, Method: provider, Created: created})
	return LoginResult{Account: account, Token: signed}, nil
}

// Register creates an active account with the default role and logs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (LoginResult, error) {
	hashed, err := s.logins.Hasher().Hash(password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := s.logins.Repository().Create(ctx, login.CreateAccountParams{
		Email:        email,
		Name:         name,
		PasswordHash: hashed,
		IsActive:     true,
	})
	if err != nil {
		return LoginResult{}, err
	}

	if s.roles != nil {
		if err := s.roles.AssignRole(ctx, account.ID, s.config.DefaultRole, s.config.Guard); err != nil {
			slog.Error("Failed to assign default role", "accountId", account.ID, "err", err)
			return LoginResult{}, fmt.Errorf("failed to assign default role: %w", err)
		}
	}

	signed, err := s.tokens.Issue(ctx, account.ID, token.IssueOptions{})
	if err != nil {
		return LoginResult{}, err
	}

	slog.Info("Account registered", "accountId", account.ID)
	s.fireHooks(ctx, LoginEvent{Account: account, Method: "password", Created: true})
	return LoginResult{Account: account, Token: signed}, nil
}

// Logout revokes exactly the presented token.
func (s *Service) Logout(ctx context.Context, tokenStr string) error {
	return s.tokens.Revoke(ctx, tokenStr)
}

// CurrentAccount validates the token and loads its account.
func (s *Service) CurrentAccount(ctx context.Context, tokenStr string) (login.Account, *token.Claims, error) {
	claims, err := s.tokens.Validate(ctx, tokenStr)
	if err != nil {
		return login.Account{}, nil, err
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return login.Account{}, nil, token.ErrTokenInvalid
	}

	account, err := s.logins.Repository().FindByID(ctx, accountID)
	if err != nil {
		return login.Account{}, nil, err
	}
	return account, claims, nil
}
