package twofa

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EmailLookup resolves an account id to its email for code delivery.
type EmailLookup func(ctx context.Context, accountID uuid.UUID) (string, error)

// Handle exposes two-factor enrollment over HTTP. All routes require an
// authenticated account.
type Handle struct {
	service  *Service
	email    EmailLookup
	validate *validator.Validate
}

func NewHandle(service *Service, email EmailLookup) Handle {
	return Handle{
		service:  service,
		email:    email,
		validate: validator.New(),
	}
}

func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/2fa/enable", h.Enable)
	r.Post("/2fa/send", h.SendCode)
	r.Post("/2fa/disable", h.Disable)
	r.Get("/2fa", h.Setting)
}

type enableRequest struct {
	Method string `json:"method" validate:"required"`
	Phone  string `json:"phone,omitempty"`
}

func accountIDFromRequest(r *http.Request) (uuid.UUID, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, false
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidMethod), errors.Is(err, ErrMissingPhone),
		errors.Is(err, ErrNotEnabled), errors.Is(err, ErrMethodMismatch):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrRateLimited):
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, map[string]string{"error": "too many requests"})
	case errors.Is(err, ErrSettingNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "2FA is not configured"})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "internal error"})
	}
}

// Enroll the account in 2FA
// (POST /2fa/enable)
func (h Handle) Enable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(r)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthorized"})
		return
	}

	var data enableRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}
	if err := h.validate.Struct(data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "method is required"})
		return
	}

	method, err := ParseMethod(data.Method)
	if err != nil {
		writeError(w, r, err)
		return
	}

	email, err := h.email(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	enrollment, err := h.service.Enable(r.Context(), accountID, email, method, data.Phone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, enrollment)
}

// Send a fresh passcode over the enrolled channel
// (POST /2fa/send)
func (h Handle) SendCode(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(r)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthorized"})
		return
	}

	email, err := h.email(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.SendCode(r.Context(), accountID, email); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "code sent"})
}

// Clear the account's 2FA enrollment
// (POST /2fa/disable)
func (h Handle) Disable(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(r)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.service.Disable(r.Context(), accountID); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "2FA disabled"})
}

// Return the account's 2FA setting
// (GET /2fa)
func (h Handle) Setting(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(r)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthorized"})
		return
	}

	setting, err := h.service.Setting(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, setting)
}
