package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/jobsift/jobsift/storage"
)

const (
	// maxCommitRetries bounds the transparent retry of optimistic
	// transaction conflicts before surfacing ErrTransactionConflict.
	maxCommitRetries = 10

	commitRetryDelay = 5 * time.Millisecond
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: slog.Default(),
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// View executes a read-only function against a snapshot of the database.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	tx := b.db.NewTransaction(false)
	defer tx.Discard()
	return fn(tx)
}

// Update executes fn inside a read-write transaction and commits it.
// Handlers for different messages may run in separate processes, so all
// coordination goes through Badger's optimistic transactions: reads are
// tracked, and a commit that raced a conflicting write fails with
// ErrConflict. Conflicts are retried transparently up to
// maxCommitRetries; fn must therefore be safe to re-execute.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		tx := b.db.NewTransaction(true)
		err := fn(tx)
		if err != nil {
			tx.Discard()
			return err
		}
		err = tx.Commit()
		if err == nil {
			if attempt > 0 {
				b.logger.Debug("transaction committed after conflict retry", "attempt", attempt+1)
			}
			return nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		lastErr = err
		time.Sleep(commitRetryDelay)
	}
	return fmt.Errorf("%w: %v", storage.ErrTransactionConflict, lastErr)
}
