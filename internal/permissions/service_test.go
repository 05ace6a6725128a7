package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	invalidated []string
	allCalls    int
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userIDs ...string) error {
	r.invalidated = append(r.invalidated, userIDs...)
	return nil
}

func (r *recordingInvalidator) InvalidateAll(ctx context.Context) error {
	r.allCalls++
	return nil
}

func TestServiceRoleLifecycle(t *testing.T) {
	store := newMemoryStore()
	inv := &recordingInvalidator{}
	svc := NewService(store, inv, nil)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "  Editor ", "content editing", NewCapabilitySet(CapSeeProjects, CapEditProjects))
	require.NoError(t, err)
	require.Equal(t, "Editor", role.Name)
	require.True(t, role.IsActive)
	require.NotEmpty(t, role.ID)

	_, err = svc.CreateRole(ctx, "Editor", "", NewCapabilitySet())
	require.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.CreateRole(ctx, "   ", "", NewCapabilitySet())
	require.Error(t, err)

	fetched, err := svc.GetRole(ctx, role.ID)
	require.NoError(t, err)
	require.True(t, fetched.Grants.Get(CapEditProjects))

	_, err = svc.GetRole(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	role.Grants = role.Grants.With(CapDeleteProjects, true)
	_, err = svc.UpdateRole(ctx, role)
	require.NoError(t, err)
	require.Equal(t, 1, inv.allCalls, "role edits drop the whole cache")

	require.NoError(t, svc.DeleteRole(ctx, role.ID))
	require.Equal(t, 2, inv.allCalls)
	require.ErrorIs(t, svc.DeleteRole(ctx, role.ID), ErrNotFound)
}

func TestServiceDeleteRoleRefusesWhileAssigned(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "Admin", "", AllCapabilities())
	require.NoError(t, err)
	store.usersByRole[role.ID] = 3

	require.ErrorIs(t, svc.DeleteRole(ctx, role.ID), ErrRoleInUse)

	_, err = svc.GetRole(ctx, role.ID)
	require.NoError(t, err, "role must survive a refused delete")
}

func TestServiceGroupLifecycle(t *testing.T) {
	store := newMemoryStore()
	inv := &recordingInvalidator{}
	svc := NewService(store, inv, nil)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "Reviewers", NewCapabilitySet(CapSeeReports))
	require.NoError(t, err)
	require.True(t, group.IsActive)
	require.Empty(t, inv.invalidated, "creating a member-less group invalidates nobody")

	require.NoError(t, svc.AddMember(ctx, "u1", group.ID))
	require.NoError(t, svc.AddMember(ctx, "u2", group.ID))
	require.Equal(t, []string{"u1", "u2"}, inv.invalidated)

	require.ErrorIs(t, svc.AddMember(ctx, "u3", "missing"), ErrNotFound)

	inv.invalidated = nil
	group.IsActive = false
	_, err = svc.UpdateGroup(ctx, group)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1", "u2"}, inv.invalidated, "group edits invalidate every member")

	inv.invalidated = nil
	require.NoError(t, svc.RemoveMember(ctx, "u1", group.ID))
	require.Equal(t, []string{"u1"}, inv.invalidated)

	inv.invalidated = nil
	require.NoError(t, svc.DeleteGroup(ctx, group.ID))
	require.Equal(t, []string{"u2"}, inv.invalidated, "remaining members are invalidated on delete")

	members, err := svc.ListMemberIDs(ctx, group.ID)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestServiceOverrideLifecycle(t *testing.T) {
	store := newMemoryStore()
	inv := &recordingInvalidator{}
	svc := NewService(store, inv, nil)
	ctx := context.Background()

	_, err := svc.GetOverride(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.SetOverride(ctx, "u1", NewCapabilitySet(CapSeeSecuritySettings)))
	require.Equal(t, []string{"u1"}, inv.invalidated)

	ov, err := svc.GetOverride(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ov.Grants.Get(CapSeeSecuritySettings))

	// upsert replaces rather than accumulates
	require.NoError(t, svc.SetOverride(ctx, "u1", NewCapabilitySet(CapSeeReports)))
	ov, err = svc.GetOverride(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ov.Grants.Get(CapSeeSecuritySettings))
	require.True(t, ov.Grants.Get(CapSeeReports))

	require.NoError(t, svc.ClearOverride(ctx, "u1"))
	_, err = svc.GetOverride(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	// clearing an absent override stays idempotent
	require.NoError(t, svc.ClearOverride(ctx, "u1"))
}
