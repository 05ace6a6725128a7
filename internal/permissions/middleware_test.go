package permissions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psmithccld/Essayons-change-sub001/internal/shared"
)

type stubChecker struct {
	set CapabilitySet
	err error
}

func (s stubChecker) Resolve(ctx context.Context, userID string) (CapabilitySet, error) {
	if s.err != nil {
		return CapabilitySet{}, s.err
	}
	return s.set, nil
}

func (s stubChecker) Check(ctx context.Context, userID string, capability Capability) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.set.Get(capability), nil
}

func guardedRequest(t *testing.T, mw func(http.Handler) http.Handler, userID string) *httptest.ResponseRecorder {
	t.Helper()
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		sess := &shared.Session{ID: "test-session"}
		sess.SetUser(userID)
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		require.True(t, called)
	} else {
		require.False(t, called)
	}
	return rec
}

func TestRequireAllowsGrantedUser(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{set: NewCapabilitySet(CapSeeProjects, CapEditProjects)}}
	rec := guardedRequest(t, mw.Require(CapSeeProjects, CapEditProjects), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireDeniesPartialGrant(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{set: NewCapabilitySet(CapSeeProjects)}}
	rec := guardedRequest(t, mw.Require(CapSeeProjects, CapEditProjects), "u1")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyAllowsSingleGrant(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{set: NewCapabilitySet(CapSeeRoles)}}
	rec := guardedRequest(t, mw.RequireAny(CapSeeSecuritySettings, CapSeeRoles), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyDeniesWhenNothingGranted(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{}}
	rec := guardedRequest(t, mw.RequireAny(CapSeeSecuritySettings, CapSeeRoles), "u1")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireDeniesAnonymousRequest(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{set: AllCapabilities()}}
	rec := guardedRequest(t, mw.Require(CapSeeProjects), "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireFailsClosedOnResolverError(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{err: errors.New("store down")}}
	rec := guardedRequest(t, mw.Require(CapSeeProjects), "u1")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuardWithoutCapabilitiesPassesThrough(t *testing.T) {
	mw := Middleware{Resolver: stubChecker{}}
	rec := guardedRequest(t, mw.Require(), "")
	require.Equal(t, http.StatusOK, rec.Code)
}
