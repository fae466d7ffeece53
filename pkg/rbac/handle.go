package rbac

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Handle exposes role and permission management over HTTP. The routes are
// meant to be mounted behind the admin middleware.
type Handle struct {
	service  *Service
	validate *validator.Validate
}

func NewHandle(service *Service) Handle {
	return Handle{service: service, validate: validator.New()}
}

func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/roles", h.CreateRole)
	r.Post("/permissions", h.CreatePermission)
	r.Post("/roles/assign", h.AssignRole)
	r.Post("/roles/remove", h.RemoveRole)
	r.Post("/permissions/grant", h.GrantPermission)
	r.Post("/permissions/revoke", h.RevokePermission)
	r.Get("/accounts/{accountID}/roles", h.ListRoles)
	r.Get("/check", h.Check)
}

type nameRequest struct {
	Name  string `json:"name" validate:"required"`
	Guard string `json:"guard" validate:"required"`
}

type membershipRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required"`
	Guard     string `json:"guard" validate:"required"`
}

func (h Handle) decodeMembership(r *http.Request) (uuid.UUID, membershipRequest, error) {
	var data membershipRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return uuid.Nil, data, err
	}
	if err := h.validate.Struct(data); err != nil {
		return uuid.Nil, data, err
	}
	accountID, err := uuid.Parse(data.AccountID)
	return accountID, data, err
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidGuard):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "invalid guard"})
	case errors.Is(err, ErrRoleNotFound), errors.Is(err, ErrPermissionNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrRoleExists), errors.Is(err, ErrPermissionExists):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]string{"error": err.Error()})
	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "internal error"})
	}
}

// Create a role
// (POST /roles)
func (h Handle) CreateRole(w http.ResponseWriter, r *http.Request) {
	var data nameRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}
	if err := h.validate.Struct(data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "name and guard are required"})
		return
	}

	role, err := h.service.CreateRole(r.Context(), data.Name, data.Guard)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, role)
}

// Create a permission
// (POST /permissions)
func (h Handle) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var data nameRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}
	if err := h.validate.Struct(data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "name and guard are required"})
		return
	}

	perm, err := h.service.CreatePermission(r.Context(), data.Name, data.Guard)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, perm)
}

// Assign a role to an account
// (POST /roles/assign)
func (h Handle) AssignRole(w http.ResponseWriter, r *http.Request) {
	accountID, data, err := h.decodeMembership(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}

	if err := h.service.AssignRole(r.Context(), accountID, data.Name, data.Guard); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "role assigned"})
}

// Remove a role from an account
// (POST /roles/remove)
func (h Handle) RemoveRole(w http.ResponseWriter, r *http.Request) {
	accountID, data, err := h.decodeMembership(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}

	if err := h.service.RemoveRole(r.Context(), accountID, data.Name, data.Guard); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "role removed"})
}

// Grant a direct permission to an account
// (POST /permissions/grant)
func (h Handle) GrantPermission(w http.ResponseWriter, r *http.Request) {
	accountID, data, err := h.decodeMembership(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}

	if err := h.service.GrantPermission(r.Context(), accountID, data.Name, data.Guard); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "permission granted"})
}

// Revoke a direct permission from an account
// (POST /permissions/revoke)
func (h Handle) RevokePermission(w http.ResponseWriter, r *http.Request) {
	accountID, data, err := h.decodeMembership(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "unable to parse request body"})
		return
	}

	if err := h.service.RevokePermission(r.Context(), accountID, data.Name, data.Guard); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "permission revoked"})
}

// List an account's roles under a guard
// (GET /accounts/{accountID}/roles?guard=web)
func (h Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "invalid account id"})
		return
	}
	guard := r.URL.Query().Get("guard")

	roles, err := h.service.RolesFor(r.Context(), accountID, guard)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{"roles": roles})
}

// Check whether an account holds a role or permission under a guard
// (GET /check?account_id=...&guard=web&role=admin or &permission=edit-posts)
func (h Handle) Check(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(r.URL.Query().Get("account_id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "invalid account id"})
		return
	}
	guard := r.URL.Query().Get("guard")
	role := r.URL.Query().Get("role")
	permission := r.URL.Query().Get("permission")

	var has bool
	switch {
	case role != "" && permission == "":
		has, err = h.service.HasRole(r.Context(), accountID, role, guard)
	case permission != "" && role == "":
		has, err = h.service.HasPermission(r.Context(), accountID, permission, guard)
	default:
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "exactly one of role or permission is required"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"has": has})
}

// RequireRole gates a route group on role membership under a guard.
func RequireRole(service *Service, role, guard string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "unauthorized"})
				return
			}
			sub, _ := claims["sub"].(string)
			accountID, err := uuid.Parse(sub)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "unauthorized"})
				return
			}

			has, err := service.HasRole(r.Context(), accountID, role, guard)
			if err != nil {
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "internal error"})
				return
			}
			if !has {
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, map[string]string{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
