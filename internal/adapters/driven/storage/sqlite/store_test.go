package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := domain.Record{
		ID:                  "52740",
		Kind:                domain.KindProject,
		Title:               "Brunnen für Äthiopien",
		OrganisationName:    "CARE Deutschland",
		OrganisationID:      "10",
		ContactName:         "Max Mustermann",
		DonationsProhibited: true,
		Closed:              false,
		Raw:                 []byte(`{"id":52740,"title":"Brunnen für Äthiopien"}`),
	}

	n, err := store.PutAll(ctx, domain.DatasetProjects, []domain.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, domain.DatasetProjects, "52740")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), domain.DatasetProjects, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreUpsertByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutAll(ctx, domain.DatasetProjects, []domain.Record{
		{ID: "1", Kind: domain.KindProject, Title: "Alt"},
	})
	require.NoError(t, err)

	// The same ID written again replaces the row, it never duplicates.
	_, err = store.PutAll(ctx, domain.DatasetProjects, []domain.Record{
		{ID: "1", Kind: domain.KindProject, Title: "Neu", Closed: true},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, domain.DatasetProjects, "1")
	require.NoError(t, err)
	assert.Equal(t, "Neu", got.Title)
	assert.True(t, got.Closed)

	count := 0
	require.NoError(t, store.ForEach(ctx, domain.DatasetProjects, func(domain.Record) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestStoreDatasetsAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutAll(ctx, domain.DatasetProjects, []domain.Record{
		{ID: "1", Kind: domain.KindProject, Title: "Projekt"},
	})
	require.NoError(t, err)
	_, err = store.PutAll(ctx, domain.DatasetOrganisations, []domain.Record{
		{ID: "1", Kind: domain.KindOrganisation, Title: "Organisation"},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, domain.DatasetOrganisations, "1")
	require.NoError(t, err)
	assert.Equal(t, "Organisation", got.Title)
}

func TestStoreForEachOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutAll(ctx, domain.DatasetProjects, []domain.Record{
		{ID: "c", Kind: domain.KindProject},
		{ID: "a", Kind: domain.KindProject},
		{ID: "b", Kind: domain.KindProject},
	})
	require.NoError(t, err)

	var ids []string
	require.NoError(t, store.ForEach(ctx, domain.DatasetProjects, func(rec domain.Record) error {
		ids = append(ids, rec.ID)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStorePutAllEmptyBatch(t *testing.T) {
	store := newTestStore(t)

	n, err := store.PutAll(context.Background(), domain.DatasetProjects, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutAll(ctx, domain.DatasetProjects, []domain.Record{
		{ID: "1", Kind: domain.KindProject},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetMeta(ctx, domain.DatasetProjects, domain.CacheDataset{
		Name:   domain.DatasetProjects,
		Status: domain.StatusReady,
	}))

	require.NoError(t, store.Clear(ctx, domain.DatasetProjects))

	_, err = store.Get(ctx, domain.DatasetProjects, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetMeta(ctx, domain.DatasetProjects)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreMetaRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetMeta(ctx, domain.DatasetEvents)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	syncedAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	meta := domain.CacheDataset{
		Name:         domain.DatasetEvents,
		Status:       domain.StatusReady,
		LastSyncedAt: syncedAt,
		RecordCount:  321,
	}
	require.NoError(t, store.SetMeta(ctx, domain.DatasetEvents, meta))

	got, err := store.GetMeta(ctx, domain.DatasetEvents)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, got.Status)
	assert.Equal(t, 321, got.RecordCount)
	assert.True(t, got.LastSyncedAt.Equal(syncedAt))

	// Updating overwrites the single row per dataset.
	meta.Status = domain.StatusFailed
	require.NoError(t, store.SetMeta(ctx, domain.DatasetEvents, meta))
	got, err = store.GetMeta(ctx, domain.DatasetEvents)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
}

func TestStoreMetaSchemaMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetMeta(ctx, domain.DatasetProjects, domain.CacheDataset{
		Name:   domain.DatasetProjects,
		Status: domain.StatusReady,
	}))

	// Simulate data written by an incompatible build.
	_, err := store.db.Exec("UPDATE dataset_meta SET schema_version = ? WHERE dataset = ?",
		domain.SchemaVersion+1, domain.DatasetProjects)
	require.NoError(t, err)

	_, err = store.GetMeta(ctx, domain.DatasetProjects)
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, err = store.PutAll(ctx, domain.DatasetProjects, []domain.Record{
		{ID: "1", Kind: domain.KindProject, Title: "Brunnenbau"},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetMeta(ctx, domain.DatasetProjects, domain.CacheDataset{
		Name:        domain.DatasetProjects,
		Status:      domain.StatusReady,
		RecordCount: 1,
	}))
	require.NoError(t, store.Close())

	// Reopening runs the migrations again; they must be idempotent and the
	// data must still be there.
	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, domain.DatasetProjects, "1")
	require.NoError(t, err)
	assert.Equal(t, "Brunnenbau", got.Title)

	meta, err := store.GetMeta(ctx, domain.DatasetProjects)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, meta.Status)
}
