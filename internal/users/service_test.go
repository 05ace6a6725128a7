package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/psmithccld/Essayons-change-sub001/internal/shared"
)

type memoryRepo struct {
	users  map[string]User
	hashes map[string]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]User), hashes: make(map[string]string)}
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryRepo) GetUser(ctx context.Context, userID string) (User, error) {
	u, ok := r.users[userID]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	r.hashes[user.ID] = passwordHash
	return user, nil
}

func (r *memoryRepo) UpdateUser(ctx context.Context, userID, name string, isActive bool) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.Name = name
	u.IsActive = isActive
	r.users[userID] = u
	return nil
}

func (r *memoryRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.RoleID = roleID
	r.users[userID] = u
	return nil
}

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userIDs ...string) error {
	r.invalidated = append(r.invalidated, userIDs...)
	return nil
}

func (r *recordingInvalidator) InvalidateAll(ctx context.Context) error { return nil }

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	user, err := svc.CreateUser(context.Background(), " Ada@Essayons.Local ", " Ada Lovelace ", "difference engine", "", nil)
	require.NoError(t, err)
	require.Equal(t, "ada@essayons.local", user.Email)
	require.Equal(t, "Ada Lovelace", user.Name)
	require.True(t, user.IsActive)

	hash := repo.hashes[user.ID]
	require.NotEqual(t, "difference engine", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("difference engine")))
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "", "Nameless", "long enough pw", "", nil)
	require.Error(t, err)

	_, err = svc.CreateUser(ctx, "short@essayons.local", "Shorty", "tiny", "", nil)
	require.Error(t, err)
}

func TestAssignRoleInvalidatesResolution(t *testing.T) {
	repo := newMemoryRepo()
	inv := &recordingInvalidator{}
	svc := NewService(repo, inv, nil)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "vic@essayons.local", "Vic", "long enough pw", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.AssignRole(ctx, user.ID, "role-1"))
	require.Equal(t, []string{user.ID}, inv.invalidated)

	got, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "role-1", got.RoleID)

	require.ErrorIs(t, svc.AssignRole(ctx, "missing", "role-1"), shared.ErrNotFound)
	require.Len(t, inv.invalidated, 1, "failed assignment must not invalidate")
}
