package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid indicates the token failed signature or claim checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked indicates a well-formed token that is no longer active.
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims are the claims carried by every bearer token this issuer mints.
// Tokens never carry role or permission data: authorization is re-evaluated
// per request against the current store state.
type Claims struct {
	// ImpersonationSessionID is set only on impersonation-issued tokens.
	ImpersonationSessionID string `json:"impersonation_session_id,omitempty"`
	// ActorID is the impersonator's account id on impersonation tokens.
	ActorID string `json:"actor_id,omitempty"`
	jwt.RegisteredClaims
}
