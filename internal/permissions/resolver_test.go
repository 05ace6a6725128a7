package permissions

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory Store used across the package tests. The fail*
// fields inject errors per lookup path.
type memoryStore struct {
	roles       map[string]Role
	userRoles   map[string]string
	groups      map[string]UserGroup
	memberships map[string][]Membership
	overrides   map[string]IndividualOverride
	usersByRole map[string]int64

	failUserRole    error
	failMemberships error
	failOverride    error
	failGroups      map[string]error

	roleLookups int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		roles:       make(map[string]Role),
		userRoles:   make(map[string]string),
		groups:      make(map[string]UserGroup),
		memberships: make(map[string][]Membership),
		overrides:   make(map[string]IndividualOverride),
		usersByRole: make(map[string]int64),
		failGroups:  make(map[string]error),
	}
}

func (s *memoryStore) addRole(role Role) Role {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	s.roles[role.ID] = role
	return role
}

func (s *memoryStore) addGroup(group UserGroup) UserGroup {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	s.groups[group.ID] = group
	return group
}

func (s *memoryStore) join(userID, groupID string) {
	s.memberships[userID] = append(s.memberships[userID], Membership{
		UserID: userID, GroupID: groupID, AssignedAt: time.Now(),
	})
}

func (s *memoryStore) GetRoleForUser(ctx context.Context, userID string) (Role, bool, error) {
	s.roleLookups++
	if s.failUserRole != nil {
		return Role{}, false, s.failUserRole
	}
	roleID, ok := s.userRoles[userID]
	if !ok {
		return Role{}, false, nil
	}
	role, ok := s.roles[roleID]
	return role, ok, nil
}

func (s *memoryStore) GetRole(ctx context.Context, roleID string) (Role, bool, error) {
	role, ok := s.roles[roleID]
	return role, ok, nil
}

func (s *memoryStore) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return Role{}, ErrNameTaken
		}
	}
	role.ID = uuid.NewString()
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	s.roles[role.ID] = role
	return role, nil
}

func (s *memoryStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if _, ok := s.roles[role.ID]; !ok {
		return Role{}, ErrNotFound
	}
	role.UpdatedAt = time.Now()
	s.roles[role.ID] = role
	return role, nil
}

func (s *memoryStore) DeleteRole(ctx context.Context, roleID string) error {
	if _, ok := s.roles[roleID]; !ok {
		return ErrNotFound
	}
	delete(s.roles, roleID)
	return nil
}

func (s *memoryStore) CountUsersWithRole(ctx context.Context, roleID string) (int64, error) {
	return s.usersByRole[roleID], nil
}

func (s *memoryStore) GetGroup(ctx context.Context, groupID string) (UserGroup, bool, error) {
	if err := s.failGroups[groupID]; err != nil {
		return UserGroup{}, false, err
	}
	group, ok := s.groups[groupID]
	return group, ok, nil
}

func (s *memoryStore) ListGroups(ctx context.Context) ([]UserGroup, error) {
	out := make([]UserGroup, 0, len(s.groups))
	for _, group := range s.groups {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memoryStore) CreateGroup(ctx context.Context, group UserGroup) (UserGroup, error) {
	for _, existing := range s.groups {
		if existing.Name == group.Name {
			return UserGroup{}, ErrNameTaken
		}
	}
	group.ID = uuid.NewString()
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt
	s.groups[group.ID] = group
	return group, nil
}

func (s *memoryStore) UpdateGroup(ctx context.Context, group UserGroup) (UserGroup, error) {
	if _, ok := s.groups[group.ID]; !ok {
		return UserGroup{}, ErrNotFound
	}
	group.UpdatedAt = time.Now()
	s.groups[group.ID] = group
	return group, nil
}

func (s *memoryStore) DeleteGroup(ctx context.Context, groupID string) error {
	if _, ok := s.groups[groupID]; !ok {
		return ErrNotFound
	}
	delete(s.groups, groupID)
	for userID, list := range s.memberships {
		kept := list[:0]
		for _, m := range list {
			if m.GroupID != groupID {
				kept = append(kept, m)
			}
		}
		s.memberships[userID] = kept
	}
	return nil
}

func (s *memoryStore) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var out []string
	for userID, list := range s.memberships {
		for _, m := range list {
			if m.GroupID == groupID {
				out = append(out, userID)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) GetMembershipsForUser(ctx context.Context, userID string) ([]Membership, error) {
	if s.failMemberships != nil {
		return nil, s.failMemberships
	}
	return s.memberships[userID], nil
}

func (s *memoryStore) AddMembership(ctx context.Context, userID, groupID string) error {
	for _, m := range s.memberships[userID] {
		if m.GroupID == groupID {
			return nil
		}
	}
	s.join(userID, groupID)
	return nil
}

func (s *memoryStore) RemoveMembership(ctx context.Context, userID, groupID string) error {
	list := s.memberships[userID]
	kept := list[:0]
	for _, m := range list {
		if m.GroupID != groupID {
			kept = append(kept, m)
		}
	}
	s.memberships[userID] = kept
	return nil
}

func (s *memoryStore) GetOverride(ctx context.Context, userID string) (IndividualOverride, bool, error) {
	if s.failOverride != nil {
		return IndividualOverride{}, false, s.failOverride
	}
	ov, ok := s.overrides[userID]
	return ov, ok, nil
}

func (s *memoryStore) SetOverride(ctx context.Context, userID string, grants CapabilitySet) error {
	ov, ok := s.overrides[userID]
	if !ok {
		ov = IndividualOverride{ID: uuid.NewString(), UserID: userID, CreatedAt: time.Now()}
	}
	ov.Grants = grants
	ov.UpdatedAt = time.Now()
	s.overrides[userID] = ov
	return nil
}

func (s *memoryStore) ClearOverride(ctx context.Context, userID string) error {
	delete(s.overrides, userID)
	return nil
}

var _ Store = (*memoryStore)(nil)

func newResolver(store *memoryStore) *Resolver {
	return &Resolver{Roles: store, Groups: store, Overrides: store}
}

func TestResolveUnknownUserDeniesEverything(t *testing.T) {
	store := newMemoryStore()
	resolver := newResolver(store)

	resolved, err := resolver.Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	require.Empty(t, resolved.Granted())

	ok, err := resolver.Check(context.Background(), "ghost", CapSeeProjects)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveRoleOnly(t *testing.T) {
	store := newMemoryStore()
	role := store.addRole(Role{Name: "Viewer", Grants: NewCapabilitySet(CapSeeProjects, CapSeeTasks), IsActive: true})
	store.userRoles["u1"] = role.ID

	resolved, err := newResolver(store).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, resolved.Get(CapSeeProjects))
	require.True(t, resolved.Get(CapSeeTasks))
	require.False(t, resolved.Get(CapEditTasks))
}

func TestResolveFoldsRoleGroupsAndOverride(t *testing.T) {
	store := newMemoryStore()
	role := store.addRole(Role{Name: "Editor", Grants: NewCapabilitySet(CapSeeProjects, CapEditProjects), IsActive: true})
	store.userRoles["u1"] = role.ID

	reviewers := store.addGroup(UserGroup{Name: "Reviewers", Grants: NewCapabilitySet(CapSeeReports, CapEditReports), IsActive: true})
	facilitators := store.addGroup(UserGroup{Name: "Facilitators", Grants: NewCapabilitySet(CapSeeSurveys), IsActive: true})
	store.join("u1", reviewers.ID)
	store.join("u1", facilitators.ID)

	require.NoError(t, store.SetOverride(context.Background(), "u1", NewCapabilitySet(CapSeeSecuritySettings)))

	resolved, err := newResolver(store).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	for _, c := range []Capability{CapSeeProjects, CapEditProjects, CapSeeReports, CapEditReports, CapSeeSurveys, CapSeeSecuritySettings} {
		require.True(t, resolved.Get(c), "expected %q", c)
	}
	require.False(t, resolved.Get(CapDeleteProjects))
}

func TestResolveSkipsInactiveGroup(t *testing.T) {
	store := newMemoryStore()
	dormant := store.addGroup(UserGroup{Name: "Dormant", Grants: NewCapabilitySet(CapDeleteUsers), IsActive: false})
	store.join("u1", dormant.ID)

	resolved, err := newResolver(store).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, resolved.Get(CapDeleteUsers))
}

func TestResolveSkipsDanglingMembership(t *testing.T) {
	store := newMemoryStore()
	store.join("u1", "deleted-group")

	resolved, err := newResolver(store).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, resolved.Granted())
}

func TestResolveDegradesOnSingleGroupError(t *testing.T) {
	store := newMemoryStore()
	role := store.addRole(Role{Name: "Viewer", Grants: NewCapabilitySet(CapSeeProjects), IsActive: true})
	store.userRoles["u1"] = role.ID

	healthy := store.addGroup(UserGroup{Name: "Healthy", Grants: NewCapabilitySet(CapSeeReports), IsActive: true})
	broken := store.addGroup(UserGroup{Name: "Broken", Grants: NewCapabilitySet(CapDeleteUsers), IsActive: true})
	store.join("u1", broken.ID)
	store.join("u1", healthy.ID)
	store.failGroups[broken.ID] = errors.New("connection reset")

	resolved, err := newResolver(store).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, resolved.Get(CapSeeProjects))
	require.True(t, resolved.Get(CapSeeReports))
	require.False(t, resolved.Get(CapDeleteUsers))
}

func TestResolvePropagatesRoleLookupError(t *testing.T) {
	store := newMemoryStore()
	store.failUserRole = errors.New("connection refused")

	_, err := newResolver(store).Resolve(context.Background(), "u1")
	require.Error(t, err)

	ok, err := newResolver(store).Check(context.Background(), "u1", CapSeeProjects)
	require.Error(t, err)
	require.False(t, ok)
}

func TestResolvePropagatesMembershipListError(t *testing.T) {
	store := newMemoryStore()
	store.failMemberships = errors.New("timeout")

	_, err := newResolver(store).Resolve(context.Background(), "u1")
	require.Error(t, err)
}

func TestResolvePropagatesOverrideError(t *testing.T) {
	store := newMemoryStore()
	store.failOverride = errors.New("timeout")

	_, err := newResolver(store).Resolve(context.Background(), "u1")
	require.Error(t, err)
}

func TestOverrideIsAdditiveOnly(t *testing.T) {
	store := newMemoryStore()
	role := store.addRole(Role{Name: "Editor", Grants: NewCapabilitySet(CapSeeProjects, CapEditProjects), IsActive: true})
	store.userRoles["u1"] = role.ID

	// an override granting nothing, and explicitly "false" semantics, cannot
	// strip what the role grants
	require.NoError(t, store.SetOverride(context.Background(), "u1", NewCapabilitySet()))

	resolved, err := newResolver(store).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, resolved.Get(CapSeeProjects))
	require.True(t, resolved.Get(CapEditProjects))
}

func TestEditorWithReviewersScenario(t *testing.T) {
	store := newMemoryStore()
	editor := store.addRole(Role{Name: "Editor", Grants: NewCapabilitySet(CapSeeProjects, CapEditProjects), IsActive: true})
	store.userRoles["u1"] = editor.ID
	reviewers := store.addGroup(UserGroup{Name: "Reviewers", Grants: NewCapabilitySet(CapSeeRaidLogs), IsActive: true})
	store.join("u1", reviewers.ID)

	resolver := newResolver(store)
	ctx := context.Background()

	resolved, err := resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	require.True(t, resolved.Equal(NewCapabilitySet(CapSeeProjects, CapEditProjects, CapSeeRaidLogs)))

	// an override adds a grant without touching the others
	require.NoError(t, store.SetOverride(ctx, "u1", NewCapabilitySet(CapDeleteProjects)))
	resolved, err = resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	require.True(t, resolved.Equal(NewCapabilitySet(CapSeeProjects, CapEditProjects, CapSeeRaidLogs, CapDeleteProjects)))

	// deactivating the group withdraws only its contribution
	reviewers.IsActive = false
	store.groups[reviewers.ID] = reviewers
	resolved, err = resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	require.True(t, resolved.Equal(NewCapabilitySet(CapSeeProjects, CapEditProjects, CapDeleteProjects)))
	require.Len(t, store.memberships["u1"], 1, "membership records stay untouched")
}

func TestCheckUnknownCapabilityFailsClosed(t *testing.T) {
	store := newMemoryStore()
	role := store.addRole(Role{Name: "Admin", Grants: AllCapabilities(), IsActive: true})
	store.userRoles["u1"] = role.ID

	resolver := newResolver(store)
	ok, err := resolver.Check(context.Background(), "u1", Capability("projects.teleport"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckUnknownCapabilityPanicsInStrictMode(t *testing.T) {
	resolver := newResolver(newMemoryStore())
	resolver.StrictNames = true
	require.Panics(t, func() {
		_, _ = resolver.Check(context.Background(), "u1", Capability("projects.teleport"))
	})
}
