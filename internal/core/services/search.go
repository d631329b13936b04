package services

import (
	"context"
	"fmt"
	"time"

	"github.com/florianmw/bpexplore/internal/core/domain"
	"github.com/florianmw/bpexplore/internal/core/ports/driving"
	"github.com/florianmw/bpexplore/internal/logger"
)

// Ensure QueryRouter implements the interface.
var _ driving.QueryRouter = (*QueryRouter)(nil)

// QueryRouter validates search terms, checks dataset readiness and
// dispatches the active mode to the search index. Readiness is enforced
// here independently of the UI, since the router may be invoked
// programmatically.
type QueryRouter struct {
	engine driving.SyncEngine
	index  *SearchIndex
}

// NewQueryRouter creates a new query router.
func NewQueryRouter(engine driving.SyncEngine, index *SearchIndex) *QueryRouter {
	return &QueryRouter{engine: engine, index: index}
}

// Search dispatches the single active search mode.
func (r *QueryRouter) Search(ctx context.Context, terms domain.SearchTerms) (*domain.Result, error) {
	mode, err := terms.Mode()
	if err != nil {
		return nil, err
	}
	term := terms.Term(mode)

	logger.Section("Search")
	logger.Debug("Mode: %s, term: %q", mode, term)

	start := time.Now()
	var matches []domain.Match

	switch mode {
	case domain.ModeID:
		// The ID field is not gated on a single dataset family; look up
		// across whatever is ready, but refuse when nothing is.
		ready, err := r.readyDatasets(ctx, domain.Datasets())
		if err != nil {
			return nil, err
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("id lookup: %w", domain.ErrNotReady)
		}
		if err := r.ensure(ctx, ready); err != nil {
			return nil, err
		}
		matches = r.index.LookupID(term, ready)

	case domain.ModeContact, domain.ModeTitle:
		datasets := []string{domain.DatasetProjects, domain.DatasetEvents}
		if err := r.requireReady(ctx, datasets); err != nil {
			return nil, err
		}
		if err := r.ensure(ctx, datasets); err != nil {
			return nil, err
		}
		if mode == domain.ModeContact {
			matches = r.index.SearchContacts(term, datasets)
		} else {
			matches = r.index.SearchTitles(term, datasets)
		}

	case domain.ModeOrg:
		if err := r.requireReady(ctx, []string{domain.DatasetOrganisations}); err != nil {
			return nil, err
		}
		ensure := []string{domain.DatasetOrganisations}
		// The project join is best-effort: organisation search is gated on
		// the organisations dataset only, matching the form contract.
		if ready, err := r.readyDatasets(ctx, []string{domain.DatasetProjects}); err == nil && len(ready) > 0 {
			ensure = append(ensure, domain.DatasetProjects)
		}
		if err := r.ensure(ctx, ensure); err != nil {
			return nil, err
		}
		matches = r.index.SearchOrganisations(term)
	}

	result := &domain.Result{
		Mode:    mode,
		Matches: matches,
		TookMs:  time.Since(start).Milliseconds(),
	}
	logger.Debug("Search took %dms, %d matches", result.TookMs, len(result.Matches))
	return result, nil
}

// requireReady returns ErrNotReady unless every listed dataset is ready.
func (r *QueryRouter) requireReady(ctx context.Context, datasets []string) error {
	for _, dataset := range datasets {
		status, err := r.engine.Status(ctx, dataset)
		if err != nil {
			return fmt.Errorf("status %s: %w", dataset, err)
		}
		if status.Status != domain.StatusReady {
			return fmt.Errorf("dataset %s is %s: %w", dataset, status.Status, domain.ErrNotReady)
		}
	}
	return nil
}

// readyDatasets filters the listed datasets down to those in ready state.
func (r *QueryRouter) readyDatasets(ctx context.Context, datasets []string) ([]string, error) {
	var ready []string
	for _, dataset := range datasets {
		status, err := r.engine.Status(ctx, dataset)
		if err != nil {
			return nil, fmt.Errorf("status %s: %w", dataset, err)
		}
		if status.Status == domain.StatusReady {
			ready = append(ready, dataset)
		}
	}
	return ready, nil
}

// ensure builds missing index snapshots for the listed datasets.
func (r *QueryRouter) ensure(ctx context.Context, datasets []string) error {
	for _, dataset := range datasets {
		if err := r.index.Ensure(ctx, dataset); err != nil {
			return fmt.Errorf("build index for %s: %w", dataset, err)
		}
	}
	return nil
}
