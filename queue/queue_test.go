package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
	storagebadger "github.com/jobsift/jobsift/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxConcurrent int, submit SubmitterFunc) (*Manager, storage.QueueStore) {
	t.Helper()

	_, store, backend, err := storagebadger.NewMemoryStores(maxConcurrent, maxConcurrent)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	if submit == nil {
		submit = func(ctx context.Context, jobID, jobType string) error { return nil }
	}
	manager, err := NewManager(store, submit, WithSubmitRetry(3, time.Millisecond))
	require.NoError(t, err)
	return manager, store
}

func TestManager_AddToQueue(t *testing.T) {
	manager, store := newTestManager(t, 2, nil)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))

	entry, err := store.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, entry.Status)
}

func TestManager_AddToQueue_RefusesDuplicates(t *testing.T) {
	manager, store := newTestManager(t, 2, nil)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	assert.ErrorIs(t, manager.AddToQueue(ctx, "job-1"), storage.ErrDuplicateJob,
		"pending jobs are never re-enqueued")

	_, err := store.Claim(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, manager.AddToQueue(ctx, "job-1"), storage.ErrDuplicateJob,
		"processing jobs are never re-enqueued")

	// The refused enqueue leaves the claimed entry and its slot alone.
	entry, err := store.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProcessing, entry.Status)
	count, err := store.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_AddToQueue_ResetsErroredJobs(t *testing.T) {
	manager, store := newTestManager(t, 1, nil)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	_, err := store.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, store.MarkError(ctx, "job-1"))

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))

	entry, err := store.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, entry.Status)
}

func TestManager_ProcessQueue_PromotesSubmittedJobs(t *testing.T) {
	manager, store := newTestManager(t, 2, nil)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	require.NoError(t, manager.AddToQueue(ctx, "job-2"))
	require.NoError(t, manager.AddToQueue(ctx, "job-3"))

	report, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Claimed, "claims are bounded by free slots")
	assert.Equal(t, 2, report.Submitted)

	jobs, err := store.ActiveJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, "scrape", job.JobType)
	}

	// Promoted jobs left the entry queue; job-3 is still pending.
	pending, err := store.EntriesByStatus(ctx, core.JobStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "job-3", pending[0].JobID)
}

func TestManager_ProcessQueue_RetriesTransientSubmitFailures(t *testing.T) {
	attempts := 0
	manager, store := newTestManager(t, 1, func(ctx context.Context, jobID, jobType string) error {
		attempts++
		if attempts < 3 {
			return errors.New("status 503")
		}
		return nil
	})
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	report, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 3, attempts)

	count, err := store.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_ProcessQueue_RequeuesExhaustedJobs(t *testing.T) {
	manager, store := newTestManager(t, 1, func(ctx context.Context, jobID, jobType string) error {
		return errors.New("status 503")
	})
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	report, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Requeued)

	entry, err := store.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)

	count, err := store.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "requeue releases the claimed slot")
}

// failingPromoteStore simulates a storage fault at promotion time.
type failingPromoteStore struct {
	storage.QueueStore
	err error
}

func (s *failingPromoteStore) Promote(ctx context.Context, jobID, jobType string) error {
	return s.err
}

func TestManager_ProcessQueue_RequeuesFailedPromotions(t *testing.T) {
	_, store, backend, err := storagebadger.NewMemoryStores(1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	wrapped := &failingPromoteStore{QueueStore: store, err: errors.New("disk failure")}
	manager, err := NewManager(wrapped, SubmitterFunc(func(ctx context.Context, jobID, jobType string) error {
		return nil
	}), WithSubmitRetry(1, 0))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	report, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Requeued)
	assert.Equal(t, 0, report.Submitted)

	// The entry went back to pending and released its slot instead of
	// sitting in processing until the stale sweep.
	entry, err := store.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)

	count, err := store.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestManager_ProcessQueue_MarksPermanentFailures(t *testing.T) {
	attempts := 0
	manager, store := newTestManager(t, 1, func(ctx context.Context, jobID, jobType string) error {
		attempts++
		return &PermanentError{Err: errors.New("status 404")}
	})
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	report, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Errored)
	assert.Equal(t, 1, attempts, "permanent failures are not retried")

	entry, err := store.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusError, entry.Status)

	count, err := store.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestManager_CompleteReleasesSlot(t *testing.T) {
	manager, store := newTestManager(t, 1, nil)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	_, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)

	require.NoError(t, manager.Complete(ctx, "job-1"))

	count, err := store.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// A freed slot lets the next job through.
	require.NoError(t, manager.AddToQueue(ctx, "job-2"))
	report, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
}

func TestManager_RequeueStale(t *testing.T) {
	manager, store := newTestManager(t, 4, nil)
	ctx := context.Background()

	old := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, store.PutEntry(ctx, &core.QueueEntry{
		JobID:     "job-stuck",
		Status:    core.JobStatusProcessing,
		CreatedAt: old,
		UpdatedAt: old,
	}))
	fresh := time.Now().UTC()
	require.NoError(t, store.PutEntry(ctx, &core.QueueEntry{
		JobID:     "job-fresh",
		Status:    core.JobStatusProcessing,
		CreatedAt: fresh,
		UpdatedAt: fresh,
	}))

	requeued, err := manager.RequeueStale(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	stuck, err := store.GetEntry(ctx, "job-stuck")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, stuck.Status)
	assert.Equal(t, 1, stuck.RetryCount)

	untouched, err := store.GetEntry(ctx, "job-fresh")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProcessing, untouched.Status,
		"recently claimed jobs stay in processing")
}

func TestManager_ErroredJobs(t *testing.T) {
	manager, _ := newTestManager(t, 1, func(ctx context.Context, jobID, jobType string) error {
		return &PermanentError{Err: errors.New("status 404")}
	})
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	_, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)

	errored, err := manager.ErroredJobs(ctx)
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, "job-1", errored[0].JobID)
	assert.Equal(t, core.JobStatusError, errored[0].Status)
}

func TestManager_Stats(t *testing.T) {
	manager, store := newTestManager(t, 2, nil)
	ctx := context.Background()

	require.NoError(t, manager.AddToQueue(ctx, "job-1"))
	require.NoError(t, manager.AddToQueue(ctx, "job-2"))
	require.NoError(t, manager.AddToQueue(ctx, "job-3"))
	_, err := manager.ProcessQueue(ctx)
	require.NoError(t, err)
	require.NoError(t, store.MarkError(ctx, "job-3"))

	stats, err := manager.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.Processing)
	assert.Equal(t, 1, stats.Errored)
	assert.Equal(t, 2, stats.Active)
}
