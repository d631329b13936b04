package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianmw/bpexplore/internal/adapters/driven/storage/memory"
	"github.com/florianmw/bpexplore/internal/core/domain"
)

// --- Mock implementations for sync testing ---

// syncMockFetcher implements driven.PageFetcher for testing.
type syncMockFetcher struct {
	mu sync.Mutex

	// pages per dataset; index 0 is page 1.
	pages map[string][][]domain.Record

	// failPage always errors for the given page number (0 = none).
	failPage int

	// transientFailures maps a page number to how many attempts fail
	// before succeeding.
	transientFailures map[int]int

	// blockPage, when non-zero, makes the first fetch of that page wait
	// for context cancellation.
	blockPage int
	blocked   chan struct{}

	calls int
}

func newSyncMockFetcher(pages map[string][][]domain.Record) *syncMockFetcher {
	return &syncMockFetcher{
		pages:             pages,
		transientFailures: make(map[int]int),
		blocked:           make(chan struct{}, 1),
	}
}

func (m *syncMockFetcher) FetchPage(ctx context.Context, dataset string, page int) (*domain.Page, error) {
	m.mu.Lock()
	m.calls++
	block := m.blockPage == page
	if block {
		m.blockPage = 0
		select {
		case m.blocked <- struct{}{}:
		default:
		}
	}
	if m.failPage == page {
		m.mu.Unlock()
		return nil, errors.New("boom")
	}
	if remaining := m.transientFailures[page]; remaining > 0 {
		m.transientFailures[page] = remaining - 1
		m.mu.Unlock()
		return nil, errors.New("transient")
	}
	pages := m.pages[dataset]
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if page < 1 || page > len(pages) {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	return &domain.Page{
		Records: pages[page-1],
		Number:  page,
		Last:    page == len(pages),
	}, nil
}

func projectRecords(ids ...string) []domain.Record {
	recs := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, domain.Record{ID: id, Kind: domain.KindProject, Title: "Projekt " + id})
	}
	return recs
}

func testSyncOptions() SyncOptions {
	return SyncOptions{
		PageTimeout:    time.Second,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
	}
}

func TestSyncEngineFullPass(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {
			projectRecords("1", "2"),
			projectRecords("3"),
		},
	})
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	require.NoError(t, engine.StartSync(context.Background(), domain.DatasetProjects))

	status, err := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, status.Status)
	assert.Equal(t, 3, status.RecordCount)
	assert.False(t, status.LastSyncedAt.IsZero())

	// Metadata must also be durable for the next session.
	meta, err := store.GetMeta(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, meta.Status)

	rec, err := store.Get(context.Background(), domain.DatasetProjects, "3")
	require.NoError(t, err)
	assert.Equal(t, "Projekt 3", rec.Title)
}

func TestSyncEngineUnknownDataset(t *testing.T) {
	engine := NewSyncEngine(memory.NewRecordStore(), newSyncMockFetcher(nil), testSyncOptions())

	err := engine.StartSync(context.Background(), "sessions")
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
}

func TestSyncEngineIdempotentStart(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {projectRecords("1"), projectRecords("2")},
	})
	fetcher.blockPage = 2
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.StartSync(ctx, domain.DatasetProjects)
	}()

	// Wait until the first run is parked on page 2, then try again.
	<-fetcher.blocked
	err := engine.StartSync(context.Background(), domain.DatasetProjects)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	cancel()
	<-errCh
}

func TestSyncEngineRetriesTransientFailures(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {projectRecords("1")},
	})
	fetcher.transientFailures[1] = 2
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	require.NoError(t, engine.StartSync(context.Background(), domain.DatasetProjects))

	status, err := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, status.Status)
}

func TestSyncEngineFailureKeepsCommittedPages(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {
			projectRecords("1", "2"),
			projectRecords("3"),
			projectRecords("4"),
		},
	})
	fetcher.failPage = 3
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	err := engine.StartSync(context.Background(), domain.DatasetProjects)
	require.Error(t, err)

	// Status reads failed, never ready.
	status, statusErr := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, statusErr)
	assert.Equal(t, domain.StatusFailed, status.Status)

	// The two committed pages stay queryable.
	for _, id := range []string{"1", "2", "3"} {
		_, getErr := store.Get(context.Background(), domain.DatasetProjects, id)
		assert.NoError(t, getErr, "record %s must survive the failed sync", id)
	}
	_, getErr := store.Get(context.Background(), domain.DatasetProjects, "4")
	assert.ErrorIs(t, getErr, domain.ErrNotFound)
}

func TestSyncEngineResyncAfterFailure(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {
			projectRecords("1", "2", "3"),
			projectRecords("4"),
		},
	})
	fetcher.failPage = 2
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	require.Error(t, engine.StartSync(context.Background(), domain.DatasetProjects))

	// Fix the remote and re-sync. Existing records are upserted, never
	// cleared first.
	fetcher.mu.Lock()
	fetcher.failPage = 0
	fetcher.mu.Unlock()
	require.NoError(t, engine.Resync(context.Background(), domain.DatasetProjects))

	status, err := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, status.Status)

	// Final store holds all four records exactly once.
	var ids []string
	require.NoError(t, store.ForEach(context.Background(), domain.DatasetProjects, func(rec domain.Record) error {
		ids = append(ids, rec.ID)
		return nil
	}))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}

func TestSyncEngineResyncCancelsInFlight(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {projectRecords("1"), projectRecords("2")},
	})
	fetcher.blockPage = 2
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.StartSync(context.Background(), domain.DatasetProjects)
	}()
	<-fetcher.blocked

	// Resync must cancel the parked run, then complete a fresh pass.
	require.NoError(t, engine.Resync(context.Background(), domain.DatasetProjects))
	assert.ErrorIs(t, <-errCh, context.Canceled)

	status, err := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, status.Status)
	assert.Equal(t, 2, status.RecordCount)
}

func TestSyncEngineStatusFallsBackToPersistedMeta(t *testing.T) {
	store := memory.NewRecordStore()
	require.NoError(t, store.SetMeta(context.Background(), domain.DatasetProjects, domain.CacheDataset{
		Name:         domain.DatasetProjects,
		Status:       domain.StatusReady,
		LastSyncedAt: time.Now(),
		RecordCount:  42,
	}))

	// A fresh engine (new session) picks up the persisted state.
	engine := NewSyncEngine(store, newSyncMockFetcher(nil), testSyncOptions())
	status, err := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, status.Status)
	assert.Equal(t, 42, status.RecordCount)
}

func TestSyncEngineSchemaMismatchReadsAsIdle(t *testing.T) {
	store := memory.NewRecordStore()
	require.NoError(t, store.SetMeta(context.Background(), domain.DatasetProjects, domain.CacheDataset{
		Name:   domain.DatasetProjects,
		Status: domain.StatusReady,
	}))
	store.SetSchemaVersion(domain.DatasetProjects, domain.SchemaVersion+1)

	engine := NewSyncEngine(store, newSyncMockFetcher(nil), testSyncOptions())
	status, err := engine.Status(context.Background(), domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, status.Status, "incompatible data must read as absent")
}

func TestSyncEngineNeverSyncedIsIdle(t *testing.T) {
	engine := NewSyncEngine(memory.NewRecordStore(), newSyncMockFetcher(nil), testSyncOptions())

	status, err := engine.Status(context.Background(), domain.DatasetEvents)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, status.Status)
}

func TestSyncEngineSubscribe(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects: {projectRecords("1")},
	})
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	changes := engine.Subscribe()
	require.NoError(t, engine.StartSync(context.Background(), domain.DatasetProjects))

	first := <-changes
	assert.Equal(t, domain.StatusSyncing, first.Status)
	second := <-changes
	assert.Equal(t, domain.StatusReady, second.Status)
	assert.Equal(t, domain.DatasetProjects, second.Dataset)
}

func TestSyncAll(t *testing.T) {
	store := memory.NewRecordStore()
	fetcher := newSyncMockFetcher(map[string][][]domain.Record{
		domain.DatasetProjects:      {projectRecords("1")},
		domain.DatasetOrganisations: {{{ID: "10", Kind: domain.KindOrganisation, Title: "CARE"}}},
		domain.DatasetEvents:        {{{ID: "100", Kind: domain.KindEvent, Title: "Spendenlauf"}}},
	})
	engine := NewSyncEngine(store, fetcher, testSyncOptions())

	require.NoError(t, engine.SyncAll(context.Background()))

	for _, dataset := range domain.Datasets() {
		status, err := engine.Status(context.Background(), dataset)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReady, status.Status, dataset)
	}
}
