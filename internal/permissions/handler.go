package permissions

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/psmithccld/Essayons-change-sub001/internal/platform/httpx"
	"github.com/psmithccld/Essayons-change-sub001/internal/shared"
)

// Handler exposes the capability catalog, the current user's resolved
// permissions, and the individual override surface as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  Checker
	guard     Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver Checker, guard Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		resolver:  resolver,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(CapSeeSecuritySettings, CapSeeRoles, CapSeeGroups))
		r.Get("/catalog", h.catalog)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(CapSeeSecuritySettings))
		r.Get("/overrides/{userID}", h.getOverride)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(CapEditSecuritySettings))
		r.Put("/overrides/{userID}", h.setOverride)
		r.Delete("/overrides/{userID}", h.clearOverride)
	})
}

type catalogEntry struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

var displayDomains = map[string]string{
	"users":          "Users",
	"projects":       "Projects",
	"tasks":          "Tasks",
	"stakeholders":   "Stakeholders",
	"raidlogs":       "RAID Logs",
	"communications": "Communications",
	"surveys":        "Surveys",
	"mindmaps":       "Mind Maps",
	"processmaps":    "Process Maps",
	"gantt":          "Gantt Charts",
	"checklists":     "Checklist Templates",
	"reports":        "Reports",
	"roles":          "Roles",
	"groups":         "Groups",
	"security":       "Security Settings",
	"email":          "Email System",
	"system":         "System Administration",
}

var titler = cases.Title(language.English)

func capabilityLabel(c Capability) string {
	domain, action, ok := strings.Cut(string(c), ".")
	if !ok {
		return titler.String(string(c))
	}
	display, known := displayDomains[domain]
	if !known {
		display = titler.String(domain)
	}
	return titler.String(action) + " " + display
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	caps := Capabilities()
	entries := make([]catalogEntry, len(caps))
	for i, c := range caps {
		entries[i] = catalogEntry{Name: string(c), Label: capabilityLabel(c)}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"capabilities": entries})
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	resolved, err := h.resolver.Resolve(r.Context(), sess.User())
	if err != nil {
		h.logger.Error("resolve own permissions", slog.String("user_id", sess.User()), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": resolved})
}

func (h *Handler) getOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ov, err := h.service.GetOverride(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get override", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overrideResponse(ov))
}

type overridePayload struct {
	Grants map[string]bool `json:"grants" validate:"required"`
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var payload overridePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	grants, err := CapabilitySetFromNames(payload.Grants)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetOverride(r.Context(), userID, grants); err != nil {
		h.logger.Error("set override", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	ov, err := h.service.GetOverride(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overrideResponse(ov))
}

func (h *Handler) clearOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.service.ClearOverride(r.Context(), userID); err != nil {
		h.logger.Error("clear override", slog.String("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func overrideResponse(ov IndividualOverride) map[string]any {
	return map[string]any{
		"id":         ov.ID,
		"user_id":    ov.UserID,
		"grants":     ov.Grants,
		"created_at": ov.CreatedAt,
		"updated_at": ov.UpdatedAt,
	}
}

// CapabilitySetFromNames builds a set from a name-to-bool payload, rejecting
// names outside the enumeration so a caller typo cannot silently vanish.
func CapabilitySetFromNames(names map[string]bool) (CapabilitySet, error) {
	set := NewCapabilitySet()
	for name, granted := range names {
		c := Capability(name)
		if !IsValid(c) {
			return CapabilitySet{}, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
		}
		if granted {
			set = set.With(c, true)
		}
	}
	return set, nil
}
