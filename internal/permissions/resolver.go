package permissions

import (
	"context"
	"fmt"
	"log/slog"
)

// RoleDirectory supplies the role tier of a resolution.
type RoleDirectory interface {
	GetRoleForUser(ctx context.Context, userID string) (Role, bool, error)
}

// GroupDirectory supplies the membership and group tiers of a resolution.
type GroupDirectory interface {
	GetGroup(ctx context.Context, groupID string) (UserGroup, bool, error)
	GetMembershipsForUser(ctx context.Context, userID string) ([]Membership, error)
}

// OverrideReader supplies the individual override tier of a resolution.
type OverrideReader interface {
	GetOverride(ctx context.Context, userID string) (IndividualOverride, bool, error)
}

// Checker is the resolution contract every caller consumes: the raw Resolver
// and the cache-backed CachedResolver both satisfy it.
type Checker interface {
	Resolve(ctx context.Context, userID string) (CapabilitySet, error)
	Check(ctx context.Context, userID string, capability Capability) (bool, error)
}

// Resolver computes a user's effective capability set by OR-folding the role
// grant, every active group grant held through membership, and the
// individual override. It is stateless and safe for concurrent use; every
// call re-reads current store state.
//
// Failure semantics are asymmetric on purpose. The role, membership-list,
// and override reads are single lookups, so a store error there surfaces as
// a resolution error and the caller denies. A failed lookup of one group
// among several is logged and skipped instead, so that one bad group read
// cannot revoke every capability derived from the remaining valid grants.
// The stricter alternative, failing the whole resolution closed on any group
// error, trades availability for caution; this implementation keeps the
// degraded-but-correct-for-known-tiers behavior.
type Resolver struct {
	Roles     RoleDirectory
	Groups    GroupDirectory
	Overrides OverrideReader
	Logger    *slog.Logger

	// StrictNames makes Check panic on a capability name outside the
	// enumeration instead of logging and returning false. Enabled outside
	// production so a typoed constant fails tests immediately.
	StrictNames bool
}

// Resolve returns the user's effective capability set. A user with no role,
// no memberships, and no override resolves to the all-false set without
// error, as does a wholly unknown userID: the resolver is safe to call
// defensively from any checkpoint.
func (r *Resolver) Resolve(ctx context.Context, userID string) (CapabilitySet, error) {
	role, found, err := r.Roles.GetRoleForUser(ctx, userID)
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("permissions: role lookup for user %s: %w", userID, err)
	}
	resolved := NewCapabilitySet()
	if found {
		resolved = role.Grants
	}

	memberships, err := r.Groups.GetMembershipsForUser(ctx, userID)
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("permissions: membership lookup for user %s: %w", userID, err)
	}
	for _, m := range memberships {
		group, found, err := r.Groups.GetGroup(ctx, m.GroupID)
		if err != nil {
			r.log().Warn("group lookup failed, skipping its contribution",
				slog.String("user_id", userID),
				slog.String("group_id", m.GroupID),
				slog.Any("error", err))
			continue
		}
		if !found || !group.IsActive {
			continue
		}
		resolved = resolved.Union(group.Grants)
	}

	override, found, err := r.Overrides.GetOverride(ctx, userID)
	if err != nil {
		return CapabilitySet{}, fmt.Errorf("permissions: override lookup for user %s: %w", userID, err)
	}
	if found {
		resolved = resolved.Union(override.Grants)
	}

	return resolved, nil
}

// Check reports whether the user holds a single capability. It re-resolves
// on every call; callers that need caching wrap the resolver in a
// CachedResolver and own its invalidation.
func (r *Resolver) Check(ctx context.Context, userID string, capability Capability) (bool, error) {
	if !r.validName(capability) {
		return false, nil
	}
	resolved, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return resolved.Get(capability), nil
}

func (r *Resolver) validName(capability Capability) bool {
	if IsValid(capability) {
		return true
	}
	if r.StrictNames {
		panic(fmt.Sprintf("permissions: unknown capability %q", capability))
	}
	r.log().Error("check of unknown capability", slog.String("capability", string(capability)))
	return false
}

func (r *Resolver) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

var _ Checker = (*Resolver)(nil)
