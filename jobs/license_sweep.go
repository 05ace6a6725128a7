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

// LicenseStore exposes the user persistence the sweep needs.
type LicenseStore interface {
	MarkExpiredLicensesReadOnly(ctx context.Context, cutoff time.Time) ([]string, error)
}

// LicenseSweepJob flips accounts whose license lapsed into read-only mode and
// drops their cached permission resolutions so the restriction applies on the
// next check.
type LicenseSweepJob struct {
	Users  LicenseStore
	Cache  permissions.Invalidator
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLicenseSweepJob wires dependencies for the sweep handler.
func NewLicenseSweepJob(users LicenseStore, cache permissions.Invalidator, logger *slog.Logger) *LicenseSweepJob {
	if cache == nil {
		cache = permissions.NoopInvalidator{}
	}
	return &LicenseSweepJob{
		Users:  users,
		Cache:  cache,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLicenseSweep tasks.
func (j *LicenseSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Users == nil {
		return errors.New("license sweep: handler not configured")
	}
	var payload LicenseSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.DryRun {
		j.logger().Info("license sweep dry run requested, skipping")
		return nil
	}

	cutoff := j.now()
	ids, err := j.Users.MarkExpiredLicensesReadOnly(ctx, cutoff)
	if err != nil {
		j.logger().Error("mark expired licenses", slog.Any("error", err))
		return err
	}
	if len(ids) == 0 {
		j.logger().Info("license sweep found no lapsed accounts")
		return nil
	}
	if err := j.Cache.Invalidate(ctx, ids...); err != nil {
		j.logger().Warn("cache invalidate after sweep", slog.Any("error", err))
	}
	j.logger().Info("license sweep completed",
		slog.Int("accounts", len(ids)), slog.Time("cutoff", cutoff))
	return nil
}

func (j *LicenseSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *LicenseSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
