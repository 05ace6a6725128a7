// Package groups exposes the user-group administration surface over the
// permission engine's service, including membership management.
package groups

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/psmithccld/Essayons-change-sub001/internal/permissions"
	"github.com/psmithccld/Essayons-change-sub001/internal/platform/httpx"
)

// Handler manages group administration endpoints.
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

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(permissions.CapSeeGroups))
		r.Get("/", h.listGroups)
		r.Get("/{groupID}", h.getGroup)
		r.Get("/{groupID}/members", h.listMembers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(permissions.CapModifyGroups))
		r.Post("/", h.createGroup)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(permissions.CapEditGroups))
		r.Put("/{groupID}", h.updateGroup)
		r.Put("/{groupID}/members/{userID}", h.addMember)
		r.Delete("/{groupID}/members/{userID}", h.removeMember)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(permissions.CapDeleteGroups))
		r.Delete("/{groupID}", h.deleteGroup)
	})
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, len(list))
	for i, group := range list {
		out[i] = groupResponse(group)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		h.respondError(w, "get group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, groupResponse(group))
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if _, err := h.service.GetGroup(r.Context(), groupID); err != nil {
		h.respondError(w, "get group", err)
		return
	}
	members, err := h.service.ListMemberIDs(r.Context(), groupID)
	if err != nil {
		h.respondError(w, "list members", err)
		return
	}
	if members == nil {
		members = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"group_id": groupID, "member_ids": members})
}

type groupPayload struct {
	Name     string          `json:"name" validate:"required"`
	Grants   map[string]bool `json:"grants" validate:"required"`
	IsActive *bool           `json:"is_active"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	payload, grants, ok := h.decodeGroup(w, r)
	if !ok {
		return
	}
	group, err := h.service.CreateGroup(r.Context(), payload.Name, grants)
	if err != nil {
		h.respondError(w, "create group", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, groupResponse(group))
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	payload, grants, ok := h.decodeGroup(w, r)
	if !ok {
		return
	}
	group := permissions.UserGroup{
		ID:       chi.URLParam(r, "groupID"),
		Name:     payload.Name,
		Grants:   grants,
		IsActive: payload.IsActive == nil || *payload.IsActive,
	}
	updated, err := h.service.UpdateGroup(r.Context(), group)
	if err != nil {
		h.respondError(w, "update group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, groupResponse(updated))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGroup(r.Context(), chi.URLParam(r, "groupID")); err != nil {
		h.respondError(w, "delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	groupID := chi.URLParam(r, "groupID")
	if err := h.service.AddMember(r.Context(), userID, groupID); err != nil {
		h.respondError(w, "add member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	groupID := chi.URLParam(r, "groupID")
	if err := h.service.RemoveMember(r.Context(), userID, groupID); err != nil {
		h.respondError(w, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeGroup(w http.ResponseWriter, r *http.Request) (groupPayload, permissions.CapabilitySet, bool) {
	var payload groupPayload
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
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func groupResponse(group permissions.UserGroup) map[string]any {
	return map[string]any{
		"id":         group.ID,
		"name":       group.Name,
		"grants":     group.Grants,
		"is_active":  group.IsActive,
		"created_at": group.CreatedAt,
		"updated_at": group.UpdatedAt,
	}
}
