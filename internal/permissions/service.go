package permissions

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Store defines the persistence operations the administration service needs.
// *Repository implements it against PostgreSQL; tests use an in-memory
// implementation.
type Store interface {
	GetRole(ctx context.Context, roleID string) (Role, bool, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	CountUsersWithRole(ctx context.Context, roleID string) (int64, error)

	GetGroup(ctx context.Context, groupID string) (UserGroup, bool, error)
	ListGroups(ctx context.Context) ([]UserGroup, error)
	CreateGroup(ctx context.Context, group UserGroup) (UserGroup, error)
	UpdateGroup(ctx context.Context, group UserGroup) (UserGroup, error)
	DeleteGroup(ctx context.Context, groupID string) error
	ListMemberIDs(ctx context.Context, groupID string) ([]string, error)

	GetMembershipsForUser(ctx context.Context, userID string) ([]Membership, error)
	AddMembership(ctx context.Context, userID, groupID string) error
	RemoveMembership(ctx context.Context, userID, groupID string) error

	GetOverride(ctx context.Context, userID string) (IndividualOverride, bool, error)
	SetOverride(ctx context.Context, userID string, grants CapabilitySet) error
	ClearOverride(ctx context.Context, userID string) error
}

// Invalidator drops cached resolutions after a mutation. *ResolutionCache
// implements it; deployments without a cache inject NoopInvalidator.
type Invalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
	InvalidateAll(ctx context.Context) error
}

// NoopInvalidator satisfies Invalidator for cache-free deployments.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, ...string) error { return nil }
func (NoopInvalidator) InvalidateAll(context.Context) error         { return nil }

// Service owns the administration of roles, groups, memberships, and
// overrides, and keeps the resolution cache honest by invalidating the
// affected users on every mutation.
type Service struct {
	store  Store
	cache  Invalidator
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(store Store, cache Invalidator, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoopInvalidator{}
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, roleID string) (Role, error) {
	role, found, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if !found {
		return Role{}, ErrNotFound
	}
	return role, nil
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string, grants CapabilitySet) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("permissions: role name required")
	}
	return s.store.CreateRole(ctx, Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		Grants:      grants,
		IsActive:    true,
	})
}

// UpdateRole replaces a role's name, description, grants, and active flag.
// Every user holding the role resolves differently afterwards, so the whole
// cache is dropped.
func (s *Service) UpdateRole(ctx context.Context, role Role) (Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	if role.Name == "" {
		return Role{}, errors.New("permissions: role name required")
	}
	role.Description = strings.TrimSpace(role.Description)
	updated, err := s.store.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.invalidateAll(ctx)
	return updated, nil
}

// DeleteRole removes a role. It refuses while any user record still
// references the role: callers must migrate those users first.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	count, err := s.store.CountUsersWithRole(ctx, roleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrRoleInUse
	}
	if err := s.store.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.invalidateAll(ctx)
	return nil
}

// ListGroups returns all groups.
func (s *Service) ListGroups(ctx context.Context) ([]UserGroup, error) {
	return s.store.ListGroups(ctx)
}

// GetGroup fetches a group by ID.
func (s *Service) GetGroup(ctx context.Context, groupID string) (UserGroup, error) {
	group, found, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return UserGroup{}, err
	}
	if !found {
		return UserGroup{}, ErrNotFound
	}
	return group, nil
}

// CreateGroup inserts a new group. No user resolves through it until a
// membership exists, so nothing is invalidated.
func (s *Service) CreateGroup(ctx context.Context, name string, grants CapabilitySet) (UserGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UserGroup{}, errors.New("permissions: group name required")
	}
	return s.store.CreateGroup(ctx, UserGroup{Name: name, Grants: grants, IsActive: true})
}

// UpdateGroup replaces a group's name, grants, and active flag. Deactivating
// a group revokes its contribution for every member on their next
// resolution; the members' cache entries are dropped here so "next
// resolution" is immediate.
func (s *Service) UpdateGroup(ctx context.Context, group UserGroup) (UserGroup, error) {
	group.Name = strings.TrimSpace(group.Name)
	if group.Name == "" {
		return UserGroup{}, errors.New("permissions: group name required")
	}
	updated, err := s.store.UpdateGroup(ctx, group)
	if err != nil {
		return UserGroup{}, err
	}
	s.invalidateMembers(ctx, group.ID)
	return updated, nil
}

// DeleteGroup removes a group and its memberships.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	members, err := s.store.ListMemberIDs(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, members...)
	return nil
}

// ListMemberIDs lists the user IDs belonging to a group.
func (s *Service) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	return s.store.ListMemberIDs(ctx, groupID)
}

// AddMember joins a user to a group.
func (s *Service) AddMember(ctx context.Context, userID, groupID string) error {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.store.AddMembership(ctx, userID, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// RemoveMember removes a user from a group.
func (s *Service) RemoveMember(ctx context.Context, userID, groupID string) error {
	if err := s.store.RemoveMembership(ctx, userID, groupID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// GetOverride fetches a user's individual override.
func (s *Service) GetOverride(ctx context.Context, userID string) (IndividualOverride, error) {
	ov, found, err := s.store.GetOverride(ctx, userID)
	if err != nil {
		return IndividualOverride{}, err
	}
	if !found {
		return IndividualOverride{}, ErrNotFound
	}
	return ov, nil
}

// SetOverride upserts a user's individual override. Overrides are additive
// by construction: the resolver ORs them on top of role and group grants, so
// an override can never revoke a capability another tier grants.
func (s *Service) SetOverride(ctx context.Context, userID string, grants CapabilitySet) error {
	if err := s.store.SetOverride(ctx, userID, grants); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// ClearOverride deletes a user's override. Idempotent.
func (s *Service) ClearOverride(ctx context.Context, userID string) error {
	if err := s.store.ClearOverride(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userIDs ...string) {
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.log().Warn("cache invalidate", slog.Any("error", err))
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log().Warn("cache invalidate all", slog.Any("error", err))
	}
}

func (s *Service) invalidateMembers(ctx context.Context, groupID string) {
	members, err := s.store.ListMemberIDs(ctx, groupID)
	if err != nil {
		s.log().Warn("list members for invalidation", slog.String("group_id", groupID), slog.Any("error", err))
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.log().Warn("cache invalidate all", slog.Any("error", err))
		}
		return
	}
	s.invalidate(ctx, members...)
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

var _ Store = (*Repository)(nil)
