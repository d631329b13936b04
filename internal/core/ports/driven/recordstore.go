package driven

import (
	"context"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

// RecordStore persists dataset records and their sync metadata.
// Backed by SQLite for durable storage; an in-memory implementation exists
// for tests. The sync engine is the single writer; readers never block.
type RecordStore interface {
	// Get retrieves a record by ID within a dataset.
	// Returns domain.ErrNotFound when absent.
	Get(ctx context.Context, dataset, id string) (*domain.Record, error)

	// PutAll upserts a batch of records into a dataset in a single
	// transaction and returns the number written. All-or-nothing: a crash
	// mid-batch must not leave partial writes visible.
	PutAll(ctx context.Context, dataset string, records []domain.Record) (int, error)

	// ForEach streams every record of a dataset to fn in stable ID order.
	// The scan is restartable; fn returning an error aborts it.
	ForEach(ctx context.Context, dataset string, fn func(domain.Record) error) error

	// Clear removes all records and metadata of a dataset.
	Clear(ctx context.Context, dataset string) error

	// GetMeta retrieves dataset sync metadata.
	// Returns domain.ErrNotFound when the dataset has never been synced and
	// domain.ErrSchemaMismatch when it was written by an incompatible
	// schema version; callers treat both as "dataset absent".
	GetMeta(ctx context.Context, dataset string) (*domain.CacheDataset, error)

	// SetMeta stores dataset sync metadata. Called by the sync engine only
	// after the records it describes have been committed.
	SetMeta(ctx context.Context, dataset string, meta domain.CacheDataset) error

	// Close releases resources.
	Close() error
}
