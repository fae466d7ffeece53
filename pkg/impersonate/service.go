package impersonate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arden28/guardian/pkg/login"
	"github.com/arden28/guardian/pkg/token"
)

var (
	// ErrForbidden indicates the actor does not hold the admin role.
	ErrForbidden = errors.New("not allowed to impersonate")
	// ErrTargetNotFound indicates the impersonation target does not exist.
	ErrTargetNotFound = errors.New("impersonation target not found")
	// ErrSelfImpersonation indicates actor and target are the same account.
	ErrSelfImpersonation = errors.New("cannot impersonate self")
	// ErrAlreadyImpersonating indicates the actor already has a live session.
	ErrAlreadyImpersonating = errors.New("impersonation already active")
	// ErrSessionEnded indicates a stop on a session that already ended.
	ErrSessionEnded = errors.New("impersonation session already ended")
)

// RoleChecker answers whether an account holds a role under a guard.
type RoleChecker interface {
	HasRole(ctx context.Context, accountID uuid.UUID, role, guard string) (bool, error)
}

// TokenIssuer mints tokens for the impersonated account and revokes them by
// jti when the revoke-on-stop policy is enabled.
type TokenIssuer interface {
	Issue(ctx context.Context, accountID uuid.UUID, opts token.IssueOptions) (string, error)
	Parse(tokenStr string) (*token.Claims, error)
	RevokeID(ctx context.Context, accountID, jti string) error
}

// Config controls the impersonation policy.
type Config struct {
	// AdminRole is the role required to start an impersonation.
	AdminRole string
	// Guard scopes the admin role check.
	Guard string
	// MaxDuration bounds a session's useful life. A session older than this
	// is treated as ended even if stop was never called.
	MaxDuration time.Duration
	// RevokeTokenOnStop revokes the session's token when the session stops.
	// Off by default: the token stays valid and the actor's own token is
	// never touched either way.
	RevokeTokenOnStop bool
}

func (c *Config) applyDefaults() {
	if c.AdminRole == "" {
		c.AdminRole = "admin"
	}
	if c.Guard == "" {
		c.Guard = "web"
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = time.Hour
	}
}

// Service starts and stops audited impersonation sessions.
type Service struct {
	logs     LogRepository
	accounts login.AccountRepository
	roles    RoleChecker
	tokens   TokenIssuer
	config   Config
	now      func() time.Time
}

func NewService(logs LogRepository, accounts login.AccountRepository, roles RoleChecker, tokens TokenIssuer, config Config) *Service {
	config.applyDefaults()
	return &Service{
		logs:     logs,
		accounts: accounts,
		roles:    roles,
		tokens:   tokens,
		config:   config,
		now:      time.Now,
	}
}

// Start begins impersonating the target as the actor. The admin check runs
// before anything is written: a forbidden start leaves no audit row. The
// actor's own token is not revoked; impersonation is additive.
func (s *Service) Start(ctx context.Context, actorID, targetID uuid.UUID) (Session, error) {
	isAdmin, err := s.roles.HasRole(ctx, actorID, s.config.AdminRole, s.config.Guard)
	if err != nil {
		return Session{}, fmt.Errorf("failed to check impersonation privilege: %w", err)
	}
	if !isAdmin {
		return Session{}, ErrForbidden
	}

	if actorID == targetID {
		return Session{}, ErrSelfImpersonation
	}

	target, err := s.accounts.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, login.ErrAccountNotFound) {
			return Session{}, ErrTargetNotFound
		}
		return Session{}, fmt.Errorf("failed to resolve impersonation target: %w", err)
	}

	open, err := s.logs.FindOpenByImpersonator(ctx, actorID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to check open sessions: %w", err)
	}
	for _, log := range open {
		if s.isLive(log) {
			return Session{}, ErrAlreadyImpersonating
		}
	}

	sessionID := uuid.New().String()
	startedAt := s.now().UTC()

	signed, err := s.tokens.Issue(ctx, target.ID, token.IssueOptions{
		ImpersonationSessionID: sessionID,
		ActorID:                actorID.String(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue impersonation token: %w", err)
	}

	var jti string
	if claims, err := s.tokens.Parse(signed); err == nil {
		jti = claims.ID
	}

	log, err := s.logs.Create(ctx, Log{
		ImpersonatorID: actorID,
		ImpersonatedID: target.ID,
		SessionID:      sessionID,
		TokenID:        jti,
		StartedAt:      startedAt,
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to record impersonation: %w", err)
	}

	slog.Info("Impersonation started", "sessionId", log.SessionID,
		"impersonatorId", actorID, "impersonatedId", target.ID)

	return Session{
		SessionID:      log.SessionID,
		ImpersonatorID: actorID,
		ImpersonatedID: target.ID,
		Token:          signed,
		StartedAt:      startedAt,
		ExpiresAt:      startedAt.Add(s.config.MaxDuration),
	}, nil
}

// Stop ends a live session, setting ended_at exactly once. The session token
// is revoked only when the RevokeTokenOnStop policy is enabled.
func (s *Service) Stop(ctx context.Context, sessionID string) error {
	log, ended, err := s.logs.End(ctx, sessionID, s.now().UTC())
	if err != nil {
		return err
	}
	if !ended {
		return ErrSessionEnded
	}

	if s.config.RevokeTokenOnStop && log.TokenID != "" {
		if err := s.tokens.RevokeID(ctx, log.ImpersonatedID.String(), log.TokenID); err != nil {
			return fmt.Errorf("failed to revoke impersonation token: %w", err)
		}
	}

	slog.Info("Impersonation stopped", "sessionId", sessionID,
		"impersonatorId", log.ImpersonatorID, "impersonatedId", log.ImpersonatedID)
	return nil
}

// IsLive reports whether the session is currently active: it exists, has not
// been stopped, and is younger than the configured maximum duration.
func (s *Service) IsLive(ctx context.Context, sessionID string) (bool, error) {
	log, err := s.logs.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.isLive(log), nil
}

func (s *Service) isLive(log Log) bool {
	if log.EndedAt != nil {
		return false
	}
	return s.now().Sub(log.StartedAt) < s.config.MaxDuration
}

// History lists the audit rows for accounts that have been impersonated.
func (s *Service) History(ctx context.Context, impersonatedID uuid.UUID) ([]Log, error) {
	return s.logs.ListByImpersonated(ctx, impersonatedID)
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
