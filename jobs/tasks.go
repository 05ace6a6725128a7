package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLicenseSweep is the task type for flipping lapsed licenses to read-only.
	TaskLicenseSweep = "license:sweep"
	// TaskPermissionsWarmup is the task type for pre-populating the resolution cache.
	TaskPermissionsWarmup = "permissions:warmup"
)

// LicenseSweepPayload configures a license sweep run. DryRun reports what
// would change without touching any account.
type LicenseSweepPayload struct {
	DryRun bool `json:"dry_run"`
}

// NewLicenseSweepTask constructs an Asynq task.
func NewLicenseSweepTask(payload LicenseSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLicenseSweep, data), nil
}

// PermissionsWarmupPayload configures a warmup run. Scope selects which
// accounts to warm; only "active" is recognised today.
type PermissionsWarmupPayload struct {
	Scope string `json:"scope"`
}

// NewPermissionsWarmupTask constructs an Asynq task.
func NewPermissionsWarmupTask(payload PermissionsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPermissionsWarmup, data), nil
}
