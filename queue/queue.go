// Copyright 2025 Jobsift Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package queue bounds how many external scraping jobs run at once.
// Claiming, promotion, and release all go through the transactional
// queue store, so the concurrency limit holds across processes.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
)

const (
	defaultJobType     = "scrape"
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
)

// Report summarizes one ProcessQueue pass.
type Report struct {
	Claimed   int
	Submitted int
	Requeued  int
	Errored   int
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending    int
	Processing int
	Errored    int
	Active     int
}

// Manager drives jobs through pending, processing, and active states.
type Manager struct {
	store       storage.QueueStore
	submitter   Submitter
	jobType     string
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithJobType sets the type recorded for promoted jobs.
// Default is "scrape".
func WithJobType(jobType string) Option {
	return func(m *Manager) error {
		if jobType != "" {
			m.jobType = jobType
		}
		return nil
	}
}

// WithSubmitRetry sets the per-job submission attempt count and the
// delay between attempts.
func WithSubmitRetry(maxAttempts int, delay time.Duration) Option {
	return func(m *Manager) error {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		if delay < 0 {
			delay = 0
		}
		m.maxAttempts = maxAttempts
		m.retryDelay = delay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a queue manager over the given store and submitter.
func NewManager(store storage.QueueStore, submitter Submitter, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if submitter == nil {
		return nil, ErrSubmitterRequired
	}

	m := &Manager{
		store:       store,
		submitter:   submitter,
		jobType:     defaultJobType,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      slog.Default().With("component", "job-queue"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddToQueue enqueues a job as pending. A job already pending or
// processing is refused with storage.ErrDuplicateJob; an errored job is
// reset to pending. The check and the write share one store
// transaction, so an interleaved claim is never overwritten.
func (m *Manager) AddToQueue(ctx context.Context, jobID string) error {
	if jobID == "" {
		return core.ErrEmptyJobID
	}
	if err := m.store.AddEntry(ctx, jobID); err != nil {
		return err
	}
	m.logger.Debug("job enqueued", "jobId", jobID)
	return nil
}

// ProcessQueue claims as many pending jobs as free slots allow, then
// submits each one. Successful submissions are promoted to active jobs;
// exhausted ones are requeued, or marked errored when the failure is
// permanent.
func (m *Manager) ProcessQueue(ctx context.Context) (*Report, error) {
	claimed, err := m.store.Claim(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Claimed: len(claimed)}
	for _, entry := range claimed {
		logger := m.logger.With("jobId", entry.JobID)

		submitErr := m.submitWithRetry(ctx, entry.JobID, logger)
		if submitErr == nil {
			if err := m.promote(ctx, entry.JobID, logger); err != nil {
				report.Requeued++
			} else {
				report.Submitted++
			}
			continue
		}

		if IsPermanent(submitErr) {
			logger.Error("job submission failed permanently", "err", submitErr)
			if err := m.store.MarkError(ctx, entry.JobID); err != nil {
				logger.Error("failed to mark job errored", "err", err)
			}
			report.Errored++
			continue
		}

		logger.Warn("job submission exhausted retries, requeueing", "err", submitErr)
		if err := m.store.Requeue(ctx, entry.JobID); err != nil {
			logger.Error("failed to requeue job", "err", err)
		}
		report.Requeued++
	}

	return report, nil
}

// Complete releases the slot held by a finished job.
func (m *Manager) Complete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return core.ErrEmptyJobID
	}
	if err := m.store.RemoveActiveJob(ctx, jobID); err != nil {
		return err
	}
	m.logger.Debug("job completed", "jobId", jobID)
	return nil
}

// RequeueStale returns processing entries older than olderThan to
// pending. An entry stays in processing only between claim and
// promotion, so one stuck longer than that window belongs to a run
// that died mid-pass. Returns the number of entries requeued.
func (m *Manager) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := m.store.EntriesByStatus(ctx, core.JobStatusProcessing)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	requeued := 0
	for _, entry := range entries {
		if !entry.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := m.store.Requeue(ctx, entry.JobID); err != nil {
			m.logger.Error("failed to requeue stale job", "jobId", entry.JobID, "err", err)
			continue
		}
		m.logger.Warn("stale processing job requeued",
			"jobId", entry.JobID,
			"stuckSince", entry.UpdatedAt)
		requeued++
	}
	return requeued, nil
}

// ErroredJobs lists entries that failed permanently, oldest first.
func (m *Manager) ErroredJobs(ctx context.Context) ([]*core.QueueEntry, error) {
	return m.store.EntriesByStatus(ctx, core.JobStatusError)
}

// Stats returns the current queue counters.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	for status, target := range map[core.JobStatus]*int{
		core.JobStatusPending:    &stats.Pending,
		core.JobStatusProcessing: &stats.Processing,
		core.JobStatusError:      &stats.Errored,
	} {
		entries, err := m.store.EntriesByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		*target = len(entries)
	}

	active, err := m.store.ActiveCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.Active = active
	return stats, nil
}

// promote swaps the claimed entry for an active-job record. Any
// promotion failure requeues the entry so it is not left in processing
// until the stale sweep finds it.
func (m *Manager) promote(ctx context.Context, jobID string, logger *slog.Logger) error {
	err := m.store.Promote(ctx, jobID, m.jobType)
	if err == nil {
		logger.Debug("job promoted to active")
		return nil
	}

	if errors.Is(err, storage.ErrCapacityExceeded) {
		logger.Warn("per-type ceiling reached, requeueing job")
	} else {
		logger.Error("failed to promote job, requeueing", "err", err)
	}
	if rerr := m.store.Requeue(ctx, jobID); rerr != nil {
		logger.Error("failed to requeue job", "err", rerr)
		return rerr
	}
	return err
}

// submitWithRetry tries the submission a bounded number of times.
// Permanent failures abort the loop immediately.
func (m *Manager) submitWithRetry(ctx context.Context, jobID string, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = m.submitter.Submit(ctx, jobID, m.jobType)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}

		logger.Debug("job submission failed, will retry",
			"attempt", attempt,
			"maxAttempts", m.maxAttempts,
			"err", lastErr)

		if attempt == m.maxAttempts {
			break
		}

		timer := time.NewTimer(m.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
