package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/storage"
)

// DocumentRepository implements storage.DocumentStore for BadgerDB.
//
// Each field path of a job document is stored under its own key, so an
// update-by-path touches exactly one key and redelivered messages simply
// overwrite the same value.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *DocumentRepository) Close() error {
	return nil
}

// Exists reports whether the document has been created. A document
// exists once its generalData subtree has been written by ingestion.
func (r *DocumentRepository) Exists(ctx context.Context, subjectID, docID string) (bool, error) {
	exists := false
	err := r.backend.View(func(tx *badger.Txn) error {
		_, err := tx.Get(makeDocKey(subjectID, docID, core.PathGeneralData))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// GetPath reads the value at path into out.
func (r *DocumentRepository) GetPath(ctx context.Context, subjectID, docID, path string, out any) error {
	return r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocKey(subjectID, docID, path))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, out); err != nil {
				return fmt.Errorf("%w: path %s: %v", storage.ErrSerializationFailed, path, err)
			}
			return nil
		})
	})
}

// SetPath overwrites the value at path.
func (r *DocumentRepository) SetPath(ctx context.Context, subjectID, docID, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: path %s: %v", storage.ErrSerializationFailed, path, err)
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeDocKey(subjectID, docID, path), data)
	})
}

// SetPaths overwrites several paths of one document in one transaction.
func (r *DocumentRepository) SetPaths(ctx context.Context, subjectID, docID string, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for path, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: path %s: %v", storage.ErrSerializationFailed, path, err)
		}
		encoded[path] = data
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		for path, data := range encoded {
			if err := tx.Set(makeDocKey(subjectID, docID, path), data); err != nil {
				return err
			}
		}
		return nil
	})
}
