// Package memory provides in-memory implementations of the storage ports
// for tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/florianmw/bpexplore/internal/core/domain"
	"github.com/florianmw/bpexplore/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.Record
	meta    map[string]domain.CacheDataset
	schema  map[string]int
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]map[string]domain.Record),
		meta:    make(map[string]domain.CacheDataset),
		schema:  make(map[string]int),
	}
}

// Get retrieves a record by ID within a dataset.
func (s *RecordStore) Get(_ context.Context, dataset, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[dataset][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// PutAll upserts a batch of records into a dataset.
func (s *RecordStore) PutAll(_ context.Context, dataset string, records []domain.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[dataset] == nil {
		s.records[dataset] = make(map[string]domain.Record)
	}
	for _, rec := range records {
		s.records[dataset][rec.ID] = rec
	}
	s.schema[dataset] = domain.SchemaVersion
	return len(records), nil
}

// ForEach streams every record of a dataset in ID order.
func (s *RecordStore) ForEach(_ context.Context, dataset string, fn func(domain.Record) error) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.records[dataset]))
	for id := range s.records[dataset] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	recs := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, s.records[dataset][id])
	}
	s.mu.RUnlock()

	for _, rec := range recs {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes all records and metadata of a dataset.
func (s *RecordStore) Clear(_ context.Context, dataset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, dataset)
	delete(s.meta, dataset)
	delete(s.schema, dataset)
	return nil
}

// GetMeta retrieves dataset sync metadata.
func (s *RecordStore) GetMeta(_ context.Context, dataset string) (*domain.CacheDataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[dataset]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v := s.schema[dataset]; v != domain.SchemaVersion {
		return nil, domain.ErrSchemaMismatch
	}
	return &meta, nil
}

// SetMeta stores dataset sync metadata.
func (s *RecordStore) SetMeta(_ context.Context, dataset string, meta domain.CacheDataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[dataset] = meta
	s.schema[dataset] = domain.SchemaVersion
	return nil
}

// Close releases resources.
func (s *RecordStore) Close() error {
	return nil
}

// SetSchemaVersion overrides the stored schema version of a dataset.
// Test hook for simulating data written by an incompatible build.
func (s *RecordStore) SetSchemaVersion(dataset string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema[dataset] = version
}
