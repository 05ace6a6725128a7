package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psmithccld/Essayons-change-sub001/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for roles, groups,
// memberships, and individual overrides. Capability sets are stored as JSONB
// so the stored shape mirrors the wire shape.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, grants, is_active, created_at, updated_at`

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, roleID string) (Role, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, roleID)
	return scanRole(row)
}

// GetRoleForUser fetches the role referenced by the user record. A missing
// user or a stale role reference both report found = false.
func (r *Repository) GetRoleForUser(ctx context.Context, userID string) (Role, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, r.description, r.grants, r.is_active, r.created_at, r.updated_at
		FROM roles r
		JOIN users u ON u.role_id = r.id
		WHERE u.id = $1`, userID)
	return scanRole(row)
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, _, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	grants, err := json.Marshal(role.Grants)
	if err != nil {
		return Role{}, err
	}
	now := time.Now().UTC()
	role.ID = uuid.NewString()
	role.CreatedAt = now
	role.UpdatedAt = now
	_, err = r.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, grants, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		role.ID, role.Name, role.Description, grants, role.IsActive, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrNameTaken
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole replaces the mutable fields of a role.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	grants, err := json.Marshal(role.Grants)
	if err != nil {
		return Role{}, err
	}
	role.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE roles SET name = $2, description = $3, grants = $4, is_active = $5, updated_at = $6
		WHERE id = $1`,
		role.ID, role.Name, role.Description, grants, role.IsActive, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrNameTaken
		}
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, ErrNotFound
	}
	return role, nil
}

// DeleteRole removes a role by ID.
func (r *Repository) DeleteRole(ctx context.Context, roleID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsersWithRole reports how many user records still reference the role.
func (r *Repository) CountUsersWithRole(ctx context.Context, roleID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

const groupColumns = `id, name, grants, is_active, created_at, updated_at`

// GetGroup fetches a group by ID.
func (r *Repository) GetGroup(ctx context.Context, groupID string) (UserGroup, bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM user_groups WHERE id = $1`, groupID)
	return scanGroup(row)
}

// ListGroups returns all groups ordered by name.
func (r *Repository) ListGroups(ctx context.Context) ([]UserGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM user_groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []UserGroup
	for rows.Next() {
		group, _, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// CreateGroup inserts a new group.
func (r *Repository) CreateGroup(ctx context.Context, group UserGroup) (UserGroup, error) {
	grants, err := json.Marshal(group.Grants)
	if err != nil {
		return UserGroup{}, err
	}
	now := time.Now().UTC()
	group.ID = uuid.NewString()
	group.CreatedAt = now
	group.UpdatedAt = now
	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_groups (id, name, grants, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID, group.Name, grants, group.IsActive, group.CreatedAt, group.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return UserGroup{}, ErrNameTaken
		}
		return UserGroup{}, err
	}
	return group, nil
}

// UpdateGroup replaces the mutable fields of a group, including its active
// flag. Deactivation takes effect on the next resolution without touching
// membership records.
func (r *Repository) UpdateGroup(ctx context.Context, group UserGroup) (UserGroup, error) {
	grants, err := json.Marshal(group.Grants)
	if err != nil {
		return UserGroup{}, err
	}
	group.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_groups SET name = $2, grants = $3, is_active = $4, updated_at = $5
		WHERE id = $1`,
		group.ID, group.Name, grants, group.IsActive, group.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return UserGroup{}, ErrNameTaken
		}
		return UserGroup{}, err
	}
	if tag.RowsAffected() == 0 {
		return UserGroup{}, ErrNotFound
	}
	return group, nil
}

// DeleteGroup removes a group and its membership records in one transaction.
func (r *Repository) DeleteGroup(ctx context.Context, groupID string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM group_memberships WHERE group_id = $1`, groupID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM user_groups WHERE id = $1`, groupID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetMembershipsForUser lists the user's group memberships.
func (r *Repository) GetMembershipsForUser(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, group_id, assigned_at FROM group_memberships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.AssignedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ListMemberIDs lists the user IDs belonging to a group.
func (r *Repository) ListMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM group_memberships WHERE group_id = $1 ORDER BY assigned_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddMembership joins a user to a group. Re-adding an existing membership is
// a no-op.
func (r *Repository) AddMembership(ctx context.Context, userID, groupID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO group_memberships (user_id, group_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, group_id) DO NOTHING`,
		userID, groupID, time.Now().UTC())
	return err
}

// RemoveMembership removes a user from a group. Removing an absent
// membership is not an error.
func (r *Repository) RemoveMembership(ctx context.Context, userID, groupID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM group_memberships WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	return err
}

// GetOverride fetches the user's individual override record.
func (r *Repository) GetOverride(ctx context.Context, userID string) (IndividualOverride, bool, error) {
	var (
		ov  IndividualOverride
		raw []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, grants, created_at, updated_at
		FROM permission_overrides WHERE user_id = $1`, userID).
		Scan(&ov.ID, &ov.UserID, &raw, &ov.CreatedAt, &ov.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IndividualOverride{}, false, nil
		}
		return IndividualOverride{}, false, err
	}
	if err := json.Unmarshal(raw, &ov.Grants); err != nil {
		return IndividualOverride{}, false, fmt.Errorf("permissions: decode override grants: %w", err)
	}
	return ov, true, nil
}

// SetOverride upserts the user's override: created when absent, replaced
// entirely when present.
func (r *Repository) SetOverride(ctx context.Context, userID string, grants CapabilitySet) error {
	data, err := json.Marshal(grants)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO permission_overrides (id, user_id, grants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE SET grants = EXCLUDED.grants, updated_at = EXCLUDED.updated_at`,
		uuid.NewString(), userID, data, now)
	return err
}

// ClearOverride deletes the user's override. Clearing an absent override is
// not an error.
func (r *Repository) ClearOverride(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM permission_overrides WHERE user_id = $1`, userID)
	return err
}

func scanRole(row pgx.Row) (Role, bool, error) {
	var (
		role Role
		raw  []byte
	)
	err := row.Scan(&role.ID, &role.Name, &role.Description, &raw, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, false, nil
		}
		return Role{}, false, err
	}
	if err := json.Unmarshal(raw, &role.Grants); err != nil {
		return Role{}, false, fmt.Errorf("permissions: decode role grants: %w", err)
	}
	return role, true, nil
}

func scanGroup(row pgx.Row) (UserGroup, bool, error) {
	var (
		group UserGroup
		raw   []byte
	)
	err := row.Scan(&group.ID, &group.Name, &raw, &group.IsActive, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserGroup{}, false, nil
		}
		return UserGroup{}, false, err
	}
	if err := json.Unmarshal(raw, &group.Grants); err != nil {
		return UserGroup{}, false, fmt.Errorf("permissions: decode group grants: %w", err)
	}
	return group, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
