package guardian

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/arden28/guardian/pkg/login"
	"github.com/arden28/guardian/pkg/social"
	"github.com/arden28/guardian/pkg/token"
	"github.com/arden28/guardian/pkg/twofa"
)

// Handle exposes the authentication flows over HTTP.
type Handle struct {
	service  *Service
	resets   *login.PasswordResetService
	validate *validator.Validate
}

func NewHandle(service *Service, resets *login.PasswordResetService) Handle {
	return Handle{
		service:  service,
		resets:   resets,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the public authentication routes.
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/login/2fa", h.CompleteTwoFactor)
	r.Post("/password-reset", h.RequestPasswordReset)
	r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
	r.Get("/social/{provider}", h.SocialRedirect)
	r.Get("/social/{provider}/callback", h.SocialCallback)
	r.Post("/social/telegram", h.TelegramLogin)
}

// RegisterProtectedRoutes mounts routes that require a valid token.
func (h Handle) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type twoFactorRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type telegramRequest struct {
	Payload map[string]string `json:"payload" validate:"required"`
}

func (h Handle) decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, map[string]string{"error": msg})
}

// writeAuthError maps domain errors onto HTTP statuses without leaking which
// failure mode occurred beyond what each status already says.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, login.ErrInvalidCredentials),
		errors.Is(err, ErrNoPendingLogin),
		errors.Is(err, twofa.ErrInvalidPasscode),
		errors.Is(err, twofa.ErrChallengeExpired),
		errors.Is(err, token.ErrTokenInvalid),
		errors.Is(err, token.ErrTokenRevoked):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "authentication failed"})
	case errors.Is(err, twofa.ErrRateLimited):
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, map[string]string{"error": "too many requests"})
	case errors.Is(err, twofa.ErrNotEnabled),
		errors.Is(err, twofa.ErrMethodMismatch):
		badRequest(w, r, err.Error())
	case errors.Is(err, login.ErrAccountExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]string{"error": "account already exists"})
	case errors.Is(err, login.ErrAccountNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "account not found"})
	case errors.Is(err, login.ErrInvalidResetToken):
		badRequest(w, r, "invalid or expired reset token")
	case errors.Is(err, social.ErrUnsupportedProvider):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "unsupported provider"})
	case errors.Is(err, social.ErrInvalidSignature),
		errors.Is(err, social.ErrExpiredAuth):
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "authentication failed"})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "internal error"})
	}
}

// Register a new account
// (POST /register)
func (h Handle) Register(w http.ResponseWriter, r *http.Request) {
	var data registerRequest
	if err := h.decode(r, &data); err != nil {
		badRequest(w, r, "unable to parse request body")
		return
	}

	result, err := h.service.Register(r.Context(), data.Name, data.Email, data.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// Login with email and password
// (POST /login)
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	var data loginRequest
	if err := h.decode(r, &data); err != nil {
		badRequest(w, r, "unable to parse request body")
		return
	}

	result, err := h.service.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Complete a 2FA-gated login
// (POST /login/2fa)
func (h Handle) CompleteTwoFactor(w http.ResponseWriter, r *http.Request) {
	var data twoFactorRequest
	if err := h.decode(r, &data); err != nil {
		badRequest(w, r, "unable to parse request body")
		return
	}

	result, err := h.service.CompleteTwoFactor(r.Context(), data.Email, data.Code)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Request a password reset email
// (POST /password-reset)
func (h Handle) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var data resetRequest
	if err := h.decode(r, &data); err != nil {
		badRequest(w, r, "unable to parse request body")
		return
	}

	if err := h.resets.RequestReset(r.Context(), data.Email); err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "reset email sent"})
}

// Redeem a password reset token
// (POST /password-reset/confirm)
func (h Handle) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var data resetConfirmRequest
	if err := h.decode(r, &data); err != nil {
		badRequest(w, r, "unable to parse request body")
		return
	}

	if err := h.resets.Reset(r.Context(), data.Email, data.Token, data.NewPassword); err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "password updated"})
}

// Redirect to a social provider
// (GET /social/{provider})
func (h Handle) SocialRedirect(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := r.URL.Query().Get("state")

	url, err := h.service.social.AuthURL(provider, state)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Complete a social login
// (GET /social/{provider}/callback)
func (h Handle) SocialCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	code := r.URL.Query().Get("code")
	if code == "" {
		badRequest(w, r, "missing authorization code")
		return
	}

	result, err := h.service.SocialLogin(r.Context(), provider, code)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Login with a signed Telegram payload
// (POST /social/telegram)
func (h Handle) TelegramLogin(w http.ResponseWriter, r *http.Request) {
	var data telegramRequest
	if err := h.decode(r, &data); err != nil {
		badRequest(w, r, "unable to parse request body")
		return
	}

	result, err := h.service.SocialPayloadLogin(r.Context(), "telegram", data.Payload)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Revoke the presented token
// (POST /logout)
func (h Handle) Logout(w http.ResponseWriter, r *http.Request) {
	tokenStr := jwtauth.TokenFromHeader(r)
	if tokenStr == "" {
		badRequest(w, r, "missing bearer token")
		return
	}

	if err := h.service.Logout(r.Context(), tokenStr); err != nil {
		writeAuthError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "logged out"})
}

// Return the authenticated account
// (GET /me)
func (h Handle) Me(w http.ResponseWriter, r *http.Request) {
	tokenStr := jwtauth.TokenFromHeader(r)
	if tokenStr == "" {
		badRequest(w, r, "missing bearer token")
		return
	}

	account, claims, err := h.service.CurrentAccount(r.Context(), tokenStr)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	resp := map[string]any{"account": account}
	if claims.ImpersonationSessionID != "" {
		resp["impersonation_session_id"] = claims.ImpersonationSessionID
		resp["actor_id"] = claims.ActorID
	}
	render.JSON(w, r, resp)
}
