package impersonate

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handle exposes impersonation over HTTP. Routes must be mounted behind the
// auth middleware; the admin check itself is enforced by the service.
type Handle struct {
	service  *Service
	validate *validator.Validate
}

func NewHandle(service *Service) Handle {
	return Handle{service: service, validate: validator.New()}
}

func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/impersonate/start", h.Start)
	r.Post("/impersonate/stop", h.Stop)
	r.Get("/impersonate/{sessionID}", h.Status)
}

type startRequest struct {
	TargetID string `json:"target_id" validate:"required,uuid"`
}

type stopRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

func actorFromRequest(r *http.Request) (uuid.UUID, bool) {
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
	case errors.Is(err, ErrForbidden):
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrTargetNotFound), errors.Is(err, ErrSessionNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrSelfImpersonation), errors.Is(err, ErrAlreadyImpersonating),
		errors.Is(err, ErrSessionEnded):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "internal error"})
	}
}

// Start impersonating a target account
// (POST /impersonate/start)
func (h Handle) Start(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromRequest(r)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "unauthorized"})
		return
	}

	var data startRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}
	if err := h.validate.Struct(data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "target_id must be a uuid"})
		return
	}
	targetID, _ := uuid.Parse(data.TargetID)

	session, err := h.service.Start(r.Context(), actorID, targetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, session)
}

// Stop a live impersonation session
// (POST /impersonate/stop)
func (h Handle) Stop(w http.ResponseWriter, r *http.Request) {
	var data stopRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}
	if err := h.validate.Struct(data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "session_id is required"})
		return
	}

	if err := h.service.Stop(r.Context(), data.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "impersonation stopped"})
}

// Report whether a session is live
// (GET /impersonate/{sessionID})
func (h Handle) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	live, err := h.service.IsLive(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"live": live})
}
