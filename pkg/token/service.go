package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Service mints and revokes bearer tokens. Each issuance gets a fresh jti;
// the set of active jtis per account lives in redis, so revocation takes
// effect across all service instances immediately. Tokens carry no implicit
// TTL: only explicit revocation ends a session.
type Service struct {
	secret   []byte
	issuer   string
	audience string
	rdb      *redis.Client
}

func NewService(secret, issuer, audience string, rdb *redis.Client) *Service {
	return &Service{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		rdb:      rdb,
	}
}

func registryKey(accountID string) string {
	return "guardian:tokens:" + accountID
}

// IssueOptions carries optional claims for special-purpose tokens.
type IssueOptions struct {
	ImpersonationSessionID string
	ActorID                string
}

// Issue mints a token bound to exactly one account. The jti is unique per
// issuance, never reused even for the same account.
func (s *Service) Issue(ctx context.Context, accountID uuid.UUID, opts IssueOptions) (string, error) {
	jti := uuid.New().String()
	now := time.Now().UTC()

	claims := Claims{
		ImpersonationSessionID: opts.ImpersonationSessionID,
		ActorID:                opts.ActorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    s.issuer,
			Subject:   accountID.String(),
			ID:        jti,
			Audience:  jwt.ClaimStrings{s.audience},
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		slog.Error("Failed to sign token", "accountId", accountID, "err", err)
		return "", err
	}

	if err := s.rdb.SAdd(ctx, registryKey(accountID.String()), jti).Err(); err != nil {
		return "", fmt.Errorf("failed to register token: %w", err)
	}

	return signed, nil
}

// Parse verifies the signature and returns the claims without consulting the
// revocation registry.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Validate verifies the signature and checks the token is still active.
func (s *Service) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := s.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	active, err := s.Active(ctx, claims.Subject, claims.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Active reports whether the jti is still registered for the account.
func (s *Service) Active(ctx context.Context, accountID, jti string) (bool, error) {
	active, err := s.rdb.SIsMember(ctx, registryKey(accountID), jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token registry: %w", err)
	}
	return active, nil
}

// Revoke invalidates a single token. Revoking an already-revoked token is a
// no-op.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := s.Parse(tokenStr)
	if err != nil {
		return err
	}
	return s.RevokeID(ctx, claims.Subject, claims.ID)
}

// RevokeID invalidates one token by account and jti.
func (s *Service) RevokeID(ctx context.Context, accountID, jti string) error {
	if err := s.rdb.SRem(ctx, registryKey(accountID), jti).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// RevokeAll invalidates every outstanding token for the account, forcing
// re-login everywhere.
func (s *Service) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	err := s.rdb.Del(ctx, registryKey(accountID.String())).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}
