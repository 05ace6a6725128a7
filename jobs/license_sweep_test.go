package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubLicenseStore struct {
	expired []string
	err     error
	cutoff  time.Time
}

func (s *stubLicenseStore) MarkExpiredLicensesReadOnly(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.cutoff = cutoff
	return s.expired, s.err
}

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userIDs ...string) error {
	r.invalidated = append(r.invalidated, userIDs...)
	return nil
}

func (r *recordingInvalidator) InvalidateAll(ctx context.Context) error { return nil }

func TestLicenseSweepInvalidatesAffectedUsers(t *testing.T) {
	store := &stubLicenseStore{expired: []string{"u1", "u2"}}
	inv := &recordingInvalidator{}
	job := NewLicenseSweepJob(store, inv, nil)

	task, err := NewLicenseSweepTask(LicenseSweepPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"u1", "u2"}, inv.invalidated)
	require.False(t, store.cutoff.IsZero())
}

func TestLicenseSweepNoLapsedAccounts(t *testing.T) {
	inv := &recordingInvalidator{}
	job := NewLicenseSweepJob(&stubLicenseStore{}, inv, nil)

	task, err := NewLicenseSweepTask(LicenseSweepPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, inv.invalidated)
}

func TestLicenseSweepDryRun(t *testing.T) {
	store := &stubLicenseStore{expired: []string{"u1"}}
	inv := &recordingInvalidator{}
	job := NewLicenseSweepJob(store, inv, nil)

	task, err := NewLicenseSweepTask(LicenseSweepPayload{DryRun: true})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, store.cutoff.IsZero(), "dry run must not touch the store")
	require.Empty(t, inv.invalidated)
}

func TestLicenseSweepPropagatesStoreError(t *testing.T) {
	job := NewLicenseSweepJob(&stubLicenseStore{err: errors.New("down")}, nil, nil)

	task, err := NewLicenseSweepTask(LicenseSweepPayload{})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}
