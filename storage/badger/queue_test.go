package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, maxConcurrent, perTypeMax int) storage.QueueStore {
	t.Helper()
	_, queue, backend, err := NewMemoryStores(maxConcurrent, perTypeMax)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return queue
}

func pendingEntry(jobID string, createdAt time.Time) *core.QueueEntry {
	return &core.QueueEntry{
		JobID:     jobID,
		Status:    core.JobStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestQueueRepository_PutGetEntry(t *testing.T) {
	queue := newTestQueue(t, 4, 4)
	ctx := context.Background()

	entry := pendingEntry("job-1", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, queue.PutEntry(ctx, entry))

	got, err := queue.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = queue.GetEntry(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestQueueRepository_Claim_RespectsAvailableSlots(t *testing.T) {
	queue := newTestQueue(t, 2, 2)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-1", base)))
	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-2", base.Add(time.Second))))
	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-3", base.Add(2*time.Second))))

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 2, "claim is bounded by maxConcurrent")
	assert.Equal(t, "job-1", claimed[0].JobID, "oldest entry claimed first")
	assert.Equal(t, "job-2", claimed[1].JobID)

	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// No free slots left; a second claim takes nothing.
	claimed, err = queue.Claim(ctx)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	remaining, err := queue.EntriesByStatus(ctx, core.JobStatusPending)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "job-3", remaining[0].JobID)
}

func TestQueueRepository_AddEntry(t *testing.T) {
	queue := newTestQueue(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, queue.AddEntry(ctx, "job-1"))
	assert.ErrorIs(t, queue.AddEntry(ctx, "job-1"), storage.ErrDuplicateJob)

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// A claimed entry is never overwritten back to pending.
	assert.ErrorIs(t, queue.AddEntry(ctx, "job-1"), storage.ErrDuplicateJob)
	entry, err := queue.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProcessing, entry.Status)
	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// An errored entry is reset, keeping its retry count.
	require.NoError(t, queue.Requeue(ctx, "job-1"))
	_, err = queue.Claim(ctx)
	require.NoError(t, err)
	require.NoError(t, queue.MarkError(ctx, "job-1"))
	require.NoError(t, queue.AddEntry(ctx, "job-1"))
	entry, err = queue.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
}

func TestQueueRepository_AddEntry_ConcurrentDuplicates(t *testing.T) {
	const attempts = 8
	queue := newTestQueue(t, 2, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = queue.AddEntry(ctx, "job-1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrDuplicateJob)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent enqueue creates the entry")
}

func TestQueueRepository_Requeue(t *testing.T) {
	queue := newTestQueue(t, 1, 1)
	ctx := context.Background()

	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-1", time.Now().UTC())))
	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, queue.Requeue(ctx, "job-1"))

	entry, err := queue.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)

	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "requeue releases the slot")
}

func TestQueueRepository_MarkError(t *testing.T) {
	queue := newTestQueue(t, 1, 1)
	ctx := context.Background()

	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-1", time.Now().UTC())))
	_, err := queue.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, queue.MarkError(ctx, "job-1"))

	entry, err := queue.GetEntry(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusError, entry.Status)

	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueueRepository_Promote(t *testing.T) {
	queue := newTestQueue(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-1", time.Now().UTC())))
	_, err := queue.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, queue.Promote(ctx, "job-1", "scrape"))

	_, err = queue.GetEntry(ctx, "job-1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "promoted entry leaves the queue")

	jobs, err := queue.ActiveJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-1", jobs[0].JobID)
	assert.Equal(t, "scrape", jobs[0].JobType)

	// The slot was taken at claim time; promotion doesn't double-count.
	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueueRepository_Promote_PerTypeCeiling(t *testing.T) {
	queue := newTestQueue(t, 4, 1)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-1", base)))
	require.NoError(t, queue.PutEntry(ctx, pendingEntry("job-2", base.Add(time.Second))))
	_, err := queue.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, queue.Promote(ctx, "job-1", "scrape"))
	err = queue.Promote(ctx, "job-2", "scrape")
	assert.ErrorIs(t, err, storage.ErrCapacityExceeded)
}

func TestQueueRepository_AddActiveJob_CapacityProperty(t *testing.T) {
	const (
		maxConcurrent = 5
		k             = 2
		attempts      = 8
	)
	queue := newTestQueue(t, maxConcurrent, maxConcurrent)
	ctx := context.Background()

	// Fill the counter to maxConcurrent - k.
	for i := 0; i < maxConcurrent-k; i++ {
		require.NoError(t, queue.AddActiveJob(ctx, &core.ActiveJob{
			JobID:     string(rune('a' + i)),
			JobType:   "scrape",
			StartedAt: time.Now().UTC(),
		}))
	}

	// N concurrent adds: at most k may succeed, the rest must report
	// capacity exceeded (the caller's requeue signal).
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = queue.AddActiveJob(ctx, &core.ActiveJob{
				JobID:     string(rune('n' + i)),
				JobType:   "scrape",
				StartedAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrCapacityExceeded)
		}
	}
	assert.Equal(t, k, succeeded)

	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, maxConcurrent, count)
}

func TestQueueRepository_RemoveActiveJob(t *testing.T) {
	queue := newTestQueue(t, 2, 2)
	ctx := context.Background()

	require.NoError(t, queue.AddActiveJob(ctx, &core.ActiveJob{
		JobID:     "job-1",
		JobType:   "scrape",
		StartedAt: time.Now().UTC(),
	}))

	require.NoError(t, queue.RemoveActiveJob(ctx, "job-1"))

	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	assert.ErrorIs(t, queue.RemoveActiveJob(ctx, "job-1"), storage.ErrNotFound)

	// Counter never dips below zero even after a missing removal.
	count, err = queue.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueueRepository_CounterMatchesActiveRecords(t *testing.T) {
	queue := newTestQueue(t, 4, 4)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.AddActiveJob(ctx, &core.ActiveJob{
			JobID:     id,
			JobType:   "scrape",
			StartedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, queue.RemoveActiveJob(ctx, "b"))

	count, err := queue.ActiveCount(ctx)
	require.NoError(t, err)
	jobs, err := queue.ActiveJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(jobs), count, "counter equals the number of active-job records")
}
