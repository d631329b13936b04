package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/florianmw/bpexplore/internal/core/domain"
	"github.com/florianmw/bpexplore/internal/core/ports/driven"
	"github.com/florianmw/bpexplore/internal/core/ports/driving"
	"github.com/florianmw/bpexplore/internal/logger"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncEngine = (*SyncEngine)(nil)

// statusBuffer is the subscriber channel depth. Slow consumers drop
// notifications rather than block a sync.
const statusBuffer = 16

// SyncOptions tunes the sync engine. Zero values fall back to defaults.
type SyncOptions struct {
	// PageTimeout bounds each page fetch attempt.
	PageTimeout time.Duration

	// MaxRetries is the retry ceiling per page, not counting the first
	// attempt.
	MaxRetries uint64

	// InitialBackoff is the first retry delay of the exponential backoff.
	InitialBackoff time.Duration
}

func (o *SyncOptions) applyDefaults() {
	if o.PageTimeout <= 0 {
		o.PageTimeout = 30 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 4
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
}

// SyncEngine synchronises datasets from the remote source into the record
// store. It owns dataset lifecycle status: idle -> syncing -> ready|failed,
// with ready|failed -> syncing on re-sync. The engine is the single writer
// of the store.
type SyncEngine struct {
	store   driven.RecordStore
	fetcher driven.PageFetcher
	opts    SyncOptions

	mu     sync.Mutex
	runs   map[string]*syncRun
	status map[string]domain.CacheDataset
	subs   []chan domain.StatusChange
}

// syncRun tracks one in-flight sync pass.
type syncRun struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSyncEngine creates a new sync engine.
func NewSyncEngine(store driven.RecordStore, fetcher driven.PageFetcher, opts SyncOptions) *SyncEngine {
	opts.applyDefaults()
	return &SyncEngine{
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		runs:    make(map[string]*syncRun),
		status:  make(map[string]domain.CacheDataset),
	}
}

// StartSync runs a full sync pass for a dataset, blocking until it completes
// or fails. Calling it while a pass for the same dataset is running returns
// domain.ErrSyncInProgress.
func (e *SyncEngine) StartSync(ctx context.Context, dataset string) error {
	if _, err := domain.KindForDataset(dataset); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &syncRun{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if _, active := e.runs[dataset]; active {
		e.mu.Unlock()
		return domain.ErrSyncInProgress
	}
	e.runs[dataset] = run
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.runs, dataset)
		e.mu.Unlock()
		close(run.done)
	}()

	logger.Info("Sync %s: starting run %s", dataset, run.id)
	e.setStatus(dataset, domain.CacheDataset{Name: dataset, Status: domain.StatusSyncing})

	written, err := e.syncPages(runCtx, dataset)

	switch {
	case errors.Is(err, context.Canceled):
		// Cancelled by a re-sync request. Drop the in-memory override so
		// Status falls back to the persisted metadata; the replacement run
		// publishes its own syncing state.
		logger.Info("Sync %s: run %s cancelled after %d records", dataset, run.id, written)
		e.clearStatus(dataset)
		return err

	case err != nil:
		// Retries exhausted. Records already committed stay available for
		// query; the dataset is flagged so callers can warn and retry.
		logger.Warn("Sync %s: run %s failed after %d records: %v", dataset, run.id, written, err)
		failed := domain.CacheDataset{
			Name:        dataset,
			Status:      domain.StatusFailed,
			RecordCount: written,
		}
		if prev, metaErr := e.store.GetMeta(runCtx, dataset); metaErr == nil {
			failed.LastSyncedAt = prev.LastSyncedAt
		}
		if metaErr := e.store.SetMeta(context.WithoutCancel(runCtx), dataset, failed); metaErr != nil {
			logger.Warn("Sync %s: persisting failed status: %v", dataset, metaErr)
		}
		e.setStatus(dataset, failed)
		return fmt.Errorf("sync %s: %w", dataset, err)
	}

	// Metadata is written only after every page committed, so consumers can
	// never observe ready before the records are durable.
	ready := domain.CacheDataset{
		Name:         dataset,
		Status:       domain.StatusReady,
		LastSyncedAt: time.Now().UTC(),
		RecordCount:  written,
	}
	if err := e.store.SetMeta(runCtx, dataset, ready); err != nil {
		return fmt.Errorf("save dataset meta: %w", err)
	}
	e.setStatus(dataset, ready)

	logger.Info("Sync %s: run %s complete, %d records", dataset, run.id, written)
	return nil
}

// Resync cancels any in-flight sync for the dataset and starts a fresh pass.
// Records are upserted by ID, never cleared first, so a failed re-sync keeps
// previously committed data intact.
func (e *SyncEngine) Resync(ctx context.Context, dataset string) error {
	e.mu.Lock()
	run, active := e.runs[dataset]
	e.mu.Unlock()

	if active {
		logger.Info("Sync %s: cancelling run %s for re-sync", dataset, run.id)
		run.cancel()
		select {
		case <-run.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return e.StartSync(ctx, dataset)
}

// SyncAll syncs all configured datasets concurrently. Datasets already
// syncing are skipped.
func (e *SyncEngine) SyncAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, dataset := range domain.Datasets() {
		dataset := dataset
		g.Go(func() error {
			if err := e.StartSync(gctx, dataset); err != nil {
				if errors.Is(err, domain.ErrSyncInProgress) {
					return nil
				}
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// Status returns the dataset's lifecycle status. In-memory state from the
// current session wins; otherwise the persisted metadata from a previous
// session is used. A never-synced or schema-incompatible dataset reads as
// idle.
func (e *SyncEngine) Status(ctx context.Context, dataset string) (domain.CacheDataset, error) {
	if _, err := domain.KindForDataset(dataset); err != nil {
		return domain.CacheDataset{}, err
	}

	e.mu.Lock()
	current, ok := e.status[dataset]
	e.mu.Unlock()
	if ok {
		return current, nil
	}

	meta, err := e.store.GetMeta(ctx, dataset)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.CacheDataset{Name: dataset, Status: domain.StatusIdle}, nil
	case errors.Is(err, domain.ErrSchemaMismatch):
		// Written by an incompatible build; treated as absent so the next
		// sync rebuilds the dataset instead of misreading it.
		logger.Warn("Dataset %s: schema mismatch, treating as absent", dataset)
		return domain.CacheDataset{Name: dataset, Status: domain.StatusIdle}, nil
	case err != nil:
		return domain.CacheDataset{}, fmt.Errorf("get dataset meta: %w", err)
	}
	return *meta, nil
}

// Subscribe returns a channel of status transitions.
func (e *SyncEngine) Subscribe() <-chan domain.StatusChange {
	ch := make(chan domain.StatusChange, statusBuffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// syncPages fetches and commits pages until the last one. Returns the number
// of records written.
func (e *SyncEngine) syncPages(ctx context.Context, dataset string) (int, error) {
	written := 0
	for page := 1; ; page++ {
		p, err := e.fetchPage(ctx, dataset, page)
		if err != nil {
			return written, err
		}

		n, err := e.store.PutAll(ctx, dataset, p.Records)
		if err != nil {
			return written, fmt.Errorf("put page %d: %w", page, err)
		}
		written += n
		logger.Debug("Sync %s: page %d committed (%d records)", dataset, page, n)

		if p.Last {
			return written, nil
		}
	}
}

// fetchPage retrieves one page, retrying transient failures with bounded
// exponential backoff up to the configured ceiling. Each attempt carries its
// own timeout.
func (e *SyncEngine) fetchPage(ctx context.Context, dataset string, page int) (*domain.Page, error) {
	attempt := 0
	operation := func() (*domain.Page, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
		defer cancel()

		p, err := e.fetcher.FetchPage(attemptCtx, dataset, page)
		if err != nil {
			logger.Debug("Sync %s: page %d attempt %d: %v", dataset, page, attempt, err)
			return nil, err
		}
		return p, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.opts.InitialBackoff

	p, err := backoff.RetryWithData(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, e.opts.MaxRetries), ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	return p, nil
}

// setStatus records the new status and notifies subscribers.
func (e *SyncEngine) setStatus(dataset string, meta domain.CacheDataset) {
	e.mu.Lock()
	e.status[dataset] = meta
	subs := make([]chan domain.StatusChange, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	change := domain.StatusChange{Dataset: dataset, Status: meta.Status}
	for _, ch := range subs {
		select {
		case ch <- change:
		default: // subscriber lagging, drop
		}
	}
}

// clearStatus drops the in-memory status override for a dataset.
func (e *SyncEngine) clearStatus(dataset string) {
	e.mu.Lock()
	delete(e.status, dataset)
	e.mu.Unlock()
}
