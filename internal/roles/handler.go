// Package roles exposes the role administration surface over the permission
// engine's service.
package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/psmithccld/Essayons-change-sub001/internal/permissions"
	"github.com/psmithccld/Essayons-change-sub001/internal/platform/httpx"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *permissions.Service
	guard     permissions.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *permissions.Service, guard permissions.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(permissions.CapSeeRoles))
		r.Get("/", h.listRoles)
		r.Get("/{roleID}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(permissions.CapModifyRoles))
		r.Post("/", h.createRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(permissions.CapEditRoles))
		r.Put("/{roleID}", h.updateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(permissions.CapDeleteRoles))
		r.Delete("/{roleID}", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, len(list))
	for i, role := range list {
		out[i] = roleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		h.respondError(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleResponse(role))
}

type rolePayload struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Grants      map[string]bool `json:"grants" validate:"required"`
	IsActive    *bool           `json:"is_active"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	payload, grants, ok := h.decodeRole(w, r)
	if !ok {
		return
	}
	role, err := h.service.CreateRole(r.Context(), payload.Name, payload.Description, grants)
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	payload, grants, ok := h.decodeRole(w, r)
	if !ok {
		return
	}
	role := permissions.Role{
		ID:          chi.URLParam(r, "roleID"),
		Name:        payload.Name,
		Description: payload.Description,
		Grants:      grants,
		IsActive:    payload.IsActive == nil || *payload.IsActive,
	}
	updated, err := h.service.UpdateRole(r.Context(), role)
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleResponse(updated))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRole(r.Context(), chi.URLParam(r, "roleID")); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeRole(w http.ResponseWriter, r *http.Request) (rolePayload, permissions.CapabilitySet, bool) {
	var payload rolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return payload, permissions.CapabilitySet{}, false
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return payload, permissions.CapabilitySet{}, false
	}
	grants, err := permissions.CapabilitySetFromNames(payload.Grants)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return payload, permissions.CapabilitySet{}, false
	}
	return payload, grants, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, permissions.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, permissions.ErrNameTaken):
		httpx.RespondError(w, httpx.ErrDuplicate)
	case errors.Is(err, permissions.ErrRoleInUse):
		httpx.Problem(w, http.StatusConflict, "Conflict", "role is still assigned to users")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func roleResponse(role permissions.Role) map[string]any {
	return map[string]any{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"grants":      role.Grants,
		"is_active":   role.IsActive,
		"created_at":  role.CreatedAt,
		"updated_at":  role.UpdatedAt,
	}
}
