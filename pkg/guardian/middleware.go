package guardian

import (
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"

	"github.com/arden28/guardian/pkg/token"
)

// AuthMiddleware verifies bearer tokens on protected routes: signature and
// registered claims via jwtauth, then the revocation registry. A revoked
// token is rejected even though its signature still verifies.
type AuthMiddleware struct {
	ja     *jwtauth.JWTAuth
	tokens *token.Service
}

func NewAuthMiddleware(secret string, tokens *token.Service) *AuthMiddleware {
	return &AuthMiddleware{
		ja:     jwtauth.New("HS256", []byte(secret), nil),
		tokens: tokens,
	}
}

// Verifier parses and validates the token signature from the request.
func (m *AuthMiddleware) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.ja)
}

// Authenticator rejects requests whose token is missing, malformed or
// revoked.
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || tok == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "invalid token"})
			return
		}

		sub, _ := claims["sub"].(string)
		jti, _ := claims["jti"].(string)
		if sub == "" || jti == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "invalid token"})
			return
		}

		active, err := m.tokens.Active(r.Context(), sub, jti)
		if err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "token registry unavailable"})
			return
		}
		if !active {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "token revoked"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SubjectFromContext returns the authenticated account id set by the
// Verifier, or "" when the request is unauthenticated.
func SubjectFromContext(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
