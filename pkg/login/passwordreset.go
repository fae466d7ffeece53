package login

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arden28/guardian/pkg/notification"
	"github.com/arden28/guardian/pkg/utils"
)

// ErrInvalidResetToken is returned when no live ticket exists for the account
// or the supplied token does not match it.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

const resetTokenLength = 60

// TokenRevoker invalidates outstanding bearer tokens for an account. Implemented
// by the token issuer; a successful reset forces re-login everywhere.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, accountID uuid.UUID) error
}

// PasswordResetConfig tunes the reset flow.
type PasswordResetConfig struct {
	TokenTTL time.Duration // default 1h
}

func (c *PasswordResetConfig) applyDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
}

// PasswordResetService issues and redeems single-use reset tickets. Tickets
// live in redis keyed by account id so that a new request atomically
// supersedes any prior live ticket across all service instances.
type PasswordResetService struct {
	repo     AccountRepository
	hasher   PasswordHasher
	rdb      *redis.Client
	notifier *notification.Manager
	revoker  TokenRevoker
	config   PasswordResetConfig
}

func NewPasswordResetService(repo AccountRepository, hasher PasswordHasher, rdb *redis.Client, notifier *notification.Manager, revoker TokenRevoker, config PasswordResetConfig) *PasswordResetService {
	config.applyDefaults()
	return &PasswordResetService{
		repo:     repo,
		hasher:   hasher,
		rdb:      rdb,
		notifier: notifier,
		revoker:  revoker,
		config:   config,
	}
}

func resetKey(accountID uuid.UUID) string {
	return "guardian:pwreset:" + accountID.String()
}

// RequestReset generates a single-use ticket for the account and dispatches
// it by email. Returns ErrAccountNotFound on an unknown email: this leaks
// account existence and intentionally mirrors the API's documented behavior.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	token, err := utils.GenerateRandomString(resetTokenLength)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	// SET overwrites any prior live ticket for this account in one step.
	if err := s.rdb.Set(ctx, resetKey(account.ID), token, s.config.TokenTTL).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetLink := fmt.Sprintf("%s/password-reset/%s", s.notifier.BaseURL, token)
	err = s.notifier.Send(notification.PasswordResetNotice, notification.EmailSystem, notification.NotificationData{
		To:   account.Email,
		Data: map[string]string{"Link": resetLink},
	})
	if err != nil {
		slog.Error("Failed to send password reset email", "accountId", account.ID, "err", err)
		return fmt.Errorf("failed to send reset notification: %w", err)
	}

	return nil
}

// Reset redeems a ticket: the supplied token must match the live ticket
// exactly. On success the password hash is replaced, the ticket is destroyed
// and every outstanding bearer token for the account is revoked.
func (s *PasswordResetService) Reset(ctx context.Context, email, token, newPassword string) error {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	stored, err := s.rdb.Get(ctx, resetKey(account.ID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("failed to load reset token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrInvalidResetToken
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, account.ID, hashed); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Single use: destroy the ticket before anything can replay it.
	if err := s.rdb.Del(ctx, resetKey(account.ID)).Err(); err != nil {
		slog.Error("Failed to delete reset token", "accountId", account.ID, "err", err)
	}

	if s.revoker != nil {
		if err := s.revoker.RevokeAll(ctx, account.ID); err != nil {
			slog.Error("Failed to revoke tokens after reset", "accountId", account.ID, "err", err)
		}
	}

	return nil
}
