package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/psmithccld/Essayons-change-sub001/internal/permissions"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, userID, name string, isActive bool) error
	AssignRole(ctx context.Context, userID, roleID string) error
}

// Service handles user management business logic.
type Service struct {
	repo   RepositoryPort
	cache  permissions.Invalidator
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache permissions.Invalidator, logger *slog.Logger) *Service {
	if cache == nil {
		cache = permissions.NoopInvalidator{}
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	return s.repo.GetUser(ctx, userID)
}

// CreateUser registers a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, email, name, password, roleID string, licenseExpiresAt *time.Time) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, errors.New("users: email required")
	}
	if len(password) < 8 {
		return User{}, errors.New("users: password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, User{
		Email:            email,
		Name:             strings.TrimSpace(name),
		RoleID:           roleID,
		IsActive:         true,
		LicenseExpiresAt: licenseExpiresAt,
	}, string(hash))
}

// UpdateUser replaces a user's name and active flag.
func (s *Service) UpdateUser(ctx context.Context, userID, name string, isActive bool) error {
	return s.repo.UpdateUser(ctx, userID, strings.TrimSpace(name), isActive)
}

// AssignRole changes the user's baseline role and drops their cached
// resolution so the new grant applies on the next check.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) error {
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log().Warn("cache invalidate after role assignment", slog.String("user_id", userID), slog.Any("error", err))
	}
	return nil
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
