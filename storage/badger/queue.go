package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
)

// QueueRepository implements storage.QueueStore for BadgerDB.
//
// The concurrency counter and the entry/active-job sets live in the
// same keyspace and are only mutated together inside one transaction.
// Badger tracks the reads of each transaction, so two concurrent claims
// of the last free slot conflict at commit and one of them retries
// against the updated counter.
type QueueRepository struct {
	backend       *Backend
	maxConcurrent int
	perTypeMax    int
}

var _ storage.QueueStore = (*QueueRepository)(nil)

// NewQueueRepository creates a new QueueRepository.
// maxConcurrent bounds the counter; perTypeMax is the second ceiling
// checked when an active-job record is created for a claimed entry.
func NewQueueRepository(backend *Backend, maxConcurrent, perTypeMax int) (*QueueRepository, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("maxConcurrent must be at least 1, got %d", maxConcurrent)
	}
	if perTypeMax < 1 {
		perTypeMax = maxConcurrent
	}
	return &QueueRepository{
		backend:       backend,
		maxConcurrent: maxConcurrent,
		perTypeMax:    perTypeMax,
	}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *QueueRepository) Close() error {
	return nil
}

// GetEntry retrieves a queue entry by job ID.
func (r *QueueRepository) GetEntry(ctx context.Context, jobID string) (*core.QueueEntry, error) {
	var result *core.QueueEntry
	err := r.backend.View(func(tx *badger.Txn) error {
		entry, err := readQueueEntry(tx, jobID)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}
		result = entry
		return nil
	})
	return result, err
}

// PutEntry upserts a queue entry.
func (r *QueueRepository) PutEntry(ctx context.Context, entry *core.QueueEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeQueueEntryKey(entry.JobID), storage.MarshalQueueEntry(entry))
	})
}

// AddEntry enqueues a job as pending. The duplicate check and the
// write share one transaction, so a claim racing the enqueue conflicts
// at commit instead of being overwritten.
func (r *QueueRepository) AddEntry(ctx context.Context, jobID string) error {
	if jobID == "" {
		return core.ErrEmptyJobID
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		existing, err := readQueueEntry(tx, jobID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status != core.JobStatusError {
			return storage.ErrDuplicateJob
		}

		now := time.Now().UTC()
		entry := &core.QueueEntry{
			JobID:     jobID,
			Status:    core.JobStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if existing != nil {
			entry.RetryCount = existing.RetryCount
		}
		return tx.Set(makeQueueEntryKey(jobID), storage.MarshalQueueEntry(entry))
	})
}

// DeleteEntry removes a queue entry.
func (r *QueueRepository) DeleteEntry(ctx context.Context, jobID string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		entry, err := readQueueEntry(tx, jobID)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}
		return tx.Delete(makeQueueEntryKey(jobID))
	})
}

// EntriesByStatus lists entries in the given status, oldest first.
func (r *QueueRepository) EntriesByStatus(ctx context.Context, status core.JobStatus) ([]*core.QueueEntry, error) {
	var results []*core.QueueEntry
	err := r.backend.View(func(tx *badger.Txn) error {
		entries, err := scanQueueEntries(tx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Status == status {
				results = append(results, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEntriesOldestFirst(results)
	return results, nil
}

// Claim marks up to availableSlots of the oldest pending entries as
// processing and increments the counter by the number claimed, all in
// one transaction. The counter and entry reads precede every write.
func (r *QueueRepository) Claim(ctx context.Context) ([]*core.QueueEntry, error) {
	var claimed []*core.QueueEntry
	err := r.backend.Update(func(tx *badger.Txn) error {
		claimed = claimed[:0]

		count, err := readCount(tx)
		if err != nil {
			return err
		}
		entries, err := scanQueueEntries(tx)
		if err != nil {
			return err
		}

		var pending []*core.QueueEntry
		for _, entry := range entries {
			if entry.Status == core.JobStatusPending {
				pending = append(pending, entry)
			}
		}
		sortEntriesOldestFirst(pending)

		available := r.maxConcurrent - int(count)
		if available <= 0 {
			return nil
		}
		if len(pending) < available {
			available = len(pending)
		}

		now := time.Now().UTC()
		for _, entry := range pending[:available] {
			entry.Status = core.JobStatusProcessing
			entry.UpdatedAt = now
			if err := tx.Set(makeQueueEntryKey(entry.JobID), storage.MarshalQueueEntry(entry)); err != nil {
				return err
			}
			claimed = append(claimed, entry)
		}
		return writeCount(tx, count+uint64(len(claimed)))
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Requeue returns an entry to pending, releasing its counter slot when
// the entry was in processing.
func (r *QueueRepository) Requeue(ctx context.Context, jobID string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		count, err := readCount(tx)
		if err != nil {
			return err
		}
		entry, err := readQueueEntry(tx, jobID)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}

		wasClaimed := entry.Status == core.JobStatusProcessing
		entry.Status = core.JobStatusPending
		entry.RetryCount++
		entry.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeQueueEntryKey(jobID), storage.MarshalQueueEntry(entry)); err != nil {
			return err
		}
		if wasClaimed && count > 0 {
			count--
		}
		return writeCount(tx, count)
	})
}

// MarkError marks an entry as failed, releasing its counter slot when
// the entry was in processing.
func (r *QueueRepository) MarkError(ctx context.Context, jobID string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		count, err := readCount(tx)
		if err != nil {
			return err
		}
		entry, err := readQueueEntry(tx, jobID)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}

		wasClaimed := entry.Status == core.JobStatusProcessing
		entry.Status = core.JobStatusError
		entry.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeQueueEntryKey(jobID), storage.MarshalQueueEntry(entry)); err != nil {
			return err
		}
		if wasClaimed && count > 0 {
			count--
		}
		return writeCount(tx, count)
	})
}

// Promote removes a claimed entry and creates its active-job record.
// The counter is unchanged: the job was counted at claim time. The
// per-type ceiling is checked against the existing active records
// before any write.
func (r *QueueRepository) Promote(ctx context.Context, jobID, jobType string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		entry, err := readQueueEntry(tx, jobID)
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}

		typeCount, err := countActiveByType(tx, jobType)
		if err != nil {
			return err
		}
		if typeCount >= r.perTypeMax {
			return fmt.Errorf("%w: %d active %q jobs", storage.ErrCapacityExceeded, typeCount, jobType)
		}

		if err := tx.Delete(makeQueueEntryKey(jobID)); err != nil {
			return err
		}
		job := &core.ActiveJob{JobID: jobID, JobType: jobType, StartedAt: time.Now().UTC()}
		return tx.Set(makeActiveJobKey(jobID), storage.MarshalActiveJob(job))
	})
}

// AddActiveJob directly admits an active job: the capacity check, the
// counter increment, and the record creation happen in one transaction.
func (r *QueueRepository) AddActiveJob(ctx context.Context, job *core.ActiveJob) error {
	if job.JobID == "" {
		return core.ErrEmptyJobID
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		count, err := readCount(tx)
		if err != nil {
			return err
		}
		if int(count) >= r.maxConcurrent {
			return fmt.Errorf("%w: %d of %d slots in use", storage.ErrCapacityExceeded, count, r.maxConcurrent)
		}
		if err := tx.Set(makeActiveJobKey(job.JobID), storage.MarshalActiveJob(job)); err != nil {
			return err
		}
		return writeCount(tx, count+1)
	})
}

// RemoveActiveJob deletes an active-job record and decrements the
// counter in the same transaction, never below zero.
func (r *QueueRepository) RemoveActiveJob(ctx context.Context, jobID string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		count, err := readCount(tx)
		if err != nil {
			return err
		}
		_, err = tx.Get(makeActiveJobKey(jobID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(makeActiveJobKey(jobID)); err != nil {
			return err
		}
		if count > 0 {
			count--
		}
		return writeCount(tx, count)
	})
}

// ActiveCount returns the current value of the concurrency counter.
func (r *QueueRepository) ActiveCount(ctx context.Context) (int, error) {
	var count uint64
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		count, err = readCount(tx)
		return err
	})
	return int(count), err
}

// ActiveJobs lists the active-job records.
func (r *QueueRepository) ActiveJobs(ctx context.Context) ([]*core.ActiveJob, error) {
	var results []*core.ActiveJob
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(activeJobPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var job *core.ActiveJob
			err := iter.Item().Value(func(val []byte) error {
				var err error
				job, err = storage.UnmarshalActiveJob(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, job)
		}
		return nil
	})
	return results, err
}

// Helper functions

// readQueueEntry reads a queue entry inside a transaction.
// Returns nil without error when the entry does not exist.
func readQueueEntry(tx *badger.Txn, jobID string) (*core.QueueEntry, error) {
	item, err := tx.Get(makeQueueEntryKey(jobID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entry *core.QueueEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalQueueEntry(val)
		return unmarshalErr
	})
	return entry, err
}

// scanQueueEntries reads all queue entries inside a transaction.
// The queue is bounded by maxConcurrent plus the backlog of a single
// deployment, so a full prefix scan stays small.
func scanQueueEntries(tx *badger.Txn) ([]*core.QueueEntry, error) {
	var entries []*core.QueueEntry
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(queueEntryPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var entry *core.QueueEntry
		err := iter.Item().Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalQueueEntry(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func countActiveByType(tx *badger.Txn, jobType string) (int, error) {
	count := 0
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(activeJobPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		err := iter.Item().Value(func(val []byte) error {
			job, err := storage.UnmarshalActiveJob(val)
			if err != nil {
				return err
			}
			if job.JobType == jobType {
				count++
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return count, nil
}

func readCount(tx *badger.Txn) (uint64, error) {
	item, err := tx.Get(makeActiveCountKey())
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var count uint64
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		count, unmarshalErr = storage.UnmarshalCount(val)
		return unmarshalErr
	})
	return count, err
}

func writeCount(tx *badger.Txn, count uint64) error {
	return tx.Set(makeActiveCountKey(), storage.MarshalCount(count))
}

func sortEntriesOldestFirst(entries []*core.QueueEntry) {
	slices.SortFunc(entries, func(a, b *core.QueueEntry) int {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return 1
		}
		return strings.Compare(a.JobID, b.JobID)
	})
}
