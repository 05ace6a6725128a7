package users

import "time"

// User represents a user account for management. RoleID references the
// user's single baseline role; an empty value means no role has been
// assigned and the user resolves to the fail-closed default.
type User struct {
	ID               string
	Email            string
	Name             string
	RoleID           string
	IsActive         bool
	ReadOnly         bool
	LicenseExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
