package permissions

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("permissions: not found")
	// ErrNameTaken indicates a role or group name collision.
	ErrNameTaken = errors.New("permissions: name already taken")
	// ErrRoleInUse indicates a role deletion was refused because user
	// records still reference it.
	ErrRoleInUse = errors.New("permissions: role still referenced by users")
	// ErrUnknownCapability indicates a capability name outside the fixed
	// enumeration was supplied by a caller.
	ErrUnknownCapability = errors.New("permissions: unknown capability")
)
