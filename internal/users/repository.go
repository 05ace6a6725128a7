package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psmithccld/Essayons-change-sub001/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, COALESCE(role_id, ''), is_active, read_only, license_expires_at, created_at, updated_at`

// ListUsers returns all users ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, userID string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// CreateUser inserts a new account with the given bcrypt password hash.
func (r *Repository) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, role_id, is_active, read_only, license_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.Name, passwordHash, user.RoleID,
		user.IsActive, user.ReadOnly, user.LicenseExpiresAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUser replaces a user's name and active flag.
func (r *Repository) UpdateUser(ctx context.Context, userID, name string, isActive bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET name = $2, is_active = $3, updated_at = $4 WHERE id = $1`,
		userID, name, isActive, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignRole points the user record at a role; an empty roleID clears the
// assignment.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET role_id = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		userID, roleID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IsReadOnly reports whether the account has been restricted to read-only
// access. An unknown userID reads as not restricted; the permission
// middleware already denies anonymous mutations.
func (r *Repository) IsReadOnly(ctx context.Context, userID string) (bool, error) {
	var readOnly bool
	err := r.pool.QueryRow(ctx, `SELECT read_only FROM users WHERE id = $1`, userID).Scan(&readOnly)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return readOnly, nil
}

// MarkExpiredLicensesReadOnly flips every account whose license lapsed
// before the cutoff into read-only mode. Returns the affected user IDs so
// the caller can invalidate their cached resolutions.
func (r *Repository) MarkExpiredLicensesReadOnly(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE users SET read_only = TRUE, updated_at = $1
		WHERE read_only = FALSE AND license_expires_at IS NOT NULL AND license_expires_at < $1
		RETURNING id`, cutoff.UTC())
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

// ListActiveUserIDs returns the IDs of active accounts, used by the
// resolution cache warmup job.
func (r *Repository) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE is_active ORDER BY email`)
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

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.RoleID, &user.IsActive,
		&user.ReadOnly, &user.LicenseExpiresAt, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}
