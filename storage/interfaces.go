package storage

import (
	"context"

	"github.com/jobsift/jobsift/core"
)

// DocumentStore provides path-addressed access to job documents.
// Implementations must be thread-safe and support concurrent access.
//
// Every write is a whole-value overwrite at a field path, never an
// append, so re-applying the same write is always safe. Paths are the
// closed set of core.Path* constants.
type DocumentStore interface {
	// Exists reports whether the document identified by subjectID/docID
	// has been created.
	Exists(ctx context.Context, subjectID, docID string) (bool, error)

	// GetPath reads the value stored at path and unmarshals it into out.
	// Returns ErrNotFound if the path has never been written.
	GetPath(ctx context.Context, subjectID, docID, path string, out any) error

	// SetPath overwrites the value at path. The value is stored as JSON.
	SetPath(ctx context.Context, subjectID, docID, path string, value any) error

	// SetPaths overwrites several paths of one document atomically.
	SetPaths(ctx context.Context, subjectID, docID string, values map[string]any) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// QueueStore manages the scraping queue: queue entries, the active-job
// set, and the shared concurrency counter. The counter and the job sets
// are only ever mutated together inside a single transaction; no
// implementation may update them separately.
type QueueStore interface {
	// GetEntry retrieves a queue entry by job ID.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, jobID string) (*core.QueueEntry, error)

	// PutEntry upserts a queue entry.
	PutEntry(ctx context.Context, entry *core.QueueEntry) error

	// AddEntry enqueues a job as pending. The duplicate check and the
	// write happen in one transaction: an entry already pending or
	// processing is refused with ErrDuplicateJob, an errored entry is
	// reset to pending keeping its retry count.
	AddEntry(ctx context.Context, jobID string) error

	// DeleteEntry removes a queue entry.
	// Returns ErrNotFound if the entry doesn't exist.
	DeleteEntry(ctx context.Context, jobID string) error

	// EntriesByStatus lists entries in the given status, oldest first.
	EntriesByStatus(ctx context.Context, status core.JobStatus) ([]*core.QueueEntry, error)

	// Claim atomically reads the counter and the pending entries,
	// computes the free slots, and claims up to that many of the oldest
	// pending entries: each claimed entry is marked processing and the
	// counter is incremented, all in one transaction. Reads precede all
	// writes within the transaction.
	Claim(ctx context.Context) ([]*core.QueueEntry, error)

	// Requeue returns a claimed entry to pending: the counter is
	// decremented, the status reset, and the retry count incremented,
	// in one transaction. The counter never goes below zero.
	Requeue(ctx context.Context, jobID string) error

	// MarkError marks a claimed entry as failed non-recoverably and
	// decrements the counter in the same transaction.
	MarkError(ctx context.Context, jobID string) error

	// Promote removes a claimed entry and creates the corresponding
	// active-job record in one transaction. The counter is unchanged:
	// the job was counted at claim time. Returns ErrCapacityExceeded
	// if the per-type active ceiling is already reached.
	Promote(ctx context.Context, jobID, jobType string) error

	// AddActiveJob directly admits an active job, incrementing the
	// counter and creating the record in one transaction. Returns
	// ErrCapacityExceeded when the counter is at the maximum; the
	// caller should requeue.
	AddActiveJob(ctx context.Context, job *core.ActiveJob) error

	// RemoveActiveJob deletes an active-job record and decrements the
	// counter in one transaction, never below zero.
	// Returns ErrNotFound if the record doesn't exist.
	RemoveActiveJob(ctx context.Context, jobID string) error

	// ActiveCount returns the current value of the concurrency counter.
	ActiveCount(ctx context.Context) (int, error)

	// ActiveJobs lists the active-job records.
	ActiveJobs(ctx context.Context) ([]*core.ActiveJob, error)

	// Close releases resources held by the store.
	Close() error
}
