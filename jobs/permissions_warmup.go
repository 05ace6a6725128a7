package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/psmithccld/Essayons-change-sub001/internal/permissions"
)

// UserDirectory lists the accounts whose resolutions are worth warming.
type UserDirectory interface {
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// PermissionsWarmupJob resolves every active account once so the first
// request after a deploy or cache flush does not pay the resolution cost.
type PermissionsWarmupJob struct {
	Users    UserDirectory
	Resolver permissions.Checker
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewPermissionsWarmupJob wires dependencies for the warmup handler.
func NewPermissionsWarmupJob(users UserDirectory, resolver permissions.Checker, logger *slog.Logger) *PermissionsWarmupJob {
	return &PermissionsWarmupJob{
		Users:    users,
		Resolver: resolver,
		Logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskPermissionsWarmup tasks.
func (j *PermissionsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Users == nil || j.Resolver == nil {
		return errors.New("permissions warmup: handler not configured")
	}
	var payload PermissionsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Scope == "" {
		payload.Scope = "active"
	}
	if payload.Scope != "active" {
		j.logger().Warn("unknown warmup scope", slog.String("scope", payload.Scope))
		return asynq.SkipRetry
	}

	start := j.now()
	ids, err := j.Users.ListActiveUserIDs(ctx)
	if err != nil {
		j.logger().Error("list accounts for warmup", slog.Any("error", err))
		return err
	}

	warmed := 0
	for _, id := range ids {
		userCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := j.Resolver.Resolve(userCtx, id)
		cancel()
		if err != nil {
			j.logger().Warn("warm resolution", slog.String("user_id", id), slog.Any("error", err))
			continue
		}
		warmed++
	}

	j.logger().Info("permissions warmup completed",
		slog.Int("accounts", len(ids)), slog.Int("warmed", warmed),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *PermissionsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *PermissionsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
