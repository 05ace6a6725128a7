package permissions

import (
	"log/slog"
	"net/http"

	"github.com/psmithccld/Essayons-change-sub001/internal/shared"
)

// Middleware wires capability checks into HTTP handlers. A resolver error is
// treated as fail-closed: the request is denied with a generic 403 and the
// cause stays in the log.
type Middleware struct {
	Resolver Checker
	Logger   *slog.Logger
}

// Require ensures the current user holds every listed capability.
func (m Middleware) Require(caps ...Capability) func(http.Handler) http.Handler {
	return m.guard(caps, func(resolved CapabilitySet, caps []Capability) bool {
		for _, c := range caps {
			if !resolved.Get(c) {
				return false
			}
		}
		return true
	})
}

// RequireAny ensures the current user holds at least one listed capability.
func (m Middleware) RequireAny(caps ...Capability) func(http.Handler) http.Handler {
	return m.guard(caps, func(resolved CapabilitySet, caps []Capability) bool {
		for _, c := range caps {
			if resolved.Get(c) {
				return true
			}
		}
		return false
	})
}

func (m Middleware) guard(caps []Capability, allow func(CapabilitySet, []Capability) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			resolved, err := m.Resolver.Resolve(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("permission resolution", slog.String("user_id", userID), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if allow(resolved, caps) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", false
	}
	userID := sess.User()
	if userID == "" {
		return "", false
	}
	return userID, true
}
