package social

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedProvider indicates a provider name outside the
	// configured set.
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrInvalidSignature indicates a signed payload whose MAC did not
	// verify.
	ErrInvalidSignature = errors.New("invalid payload signature")
	// ErrExpiredAuth indicates a payload older than the freshness window.
	ErrExpiredAuth = errors.New("authentication payload expired")
)

// Identity is the normalized result of a provider verification. Email may be
// absent: signed-payload providers do not deliver one.
type Identity struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

// Provider is a verified source of third-party identities.
type Provider interface {
	Name() string
}

// RedirectProvider performs the standard delegated-auth flow: the client is
// redirected out, comes back with a code, and the code is exchanged here.
type RedirectProvider interface {
	Provider
	AuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (Identity, error)
}

// PayloadProvider verifies a signed identity payload the client already
// obtained, with no redirect or token exchange.
type PayloadProvider interface {
	Provider
	VerifyPayload(payload map[string]string) (Identity, error)
}
