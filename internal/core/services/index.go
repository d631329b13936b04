package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/florianmw/bpexplore/internal/core/domain"
	"github.com/florianmw/bpexplore/internal/core/ports/driven"
	"github.com/florianmw/bpexplore/internal/logger"
	"github.com/florianmw/bpexplore/internal/normalise"
)

// SearchIndex holds in-memory lookup structures derived from the record
// store. Snapshots are rebuilt from scratch per dataset and swapped in
// atomically: a query issued during a rebuild sees the previous complete
// snapshot, never a partial one. The index never mutates the store.
type SearchIndex struct {
	store     driven.RecordStore
	threshold float64

	mu        sync.RWMutex
	snapshots map[string]*datasetIndex
}

// datasetIndex is one immutable snapshot of a dataset. Never modified after
// build; replaced wholesale on rebuild.
type datasetIndex struct {
	kind domain.EntityKind

	byID map[string]domain.Record

	// Normalised token lists per record, used for scoring.
	contactTokens map[string][]string
	orgTokens     map[string][]string
	titleTokens   map[string][]string

	// Inverted token indexes, used for candidate generation so a fuzzy
	// query never scans the full dataset.
	byContactToken map[string][]string
	byOrgToken     map[string][]string
	byTitleToken   map[string][]string

	// Join structures for grouping projects under their organisation.
	byOrgID   map[string][]string
	byOrgName map[string][]string
}

// indexField selects which token index a fuzzy query runs against.
type indexField int

const (
	fieldContact indexField = iota
	fieldOrg
	fieldTitle
)

// NewSearchIndex creates a search index over the given store. A threshold
// of 0 uses DefaultThreshold.
func NewSearchIndex(store driven.RecordStore, threshold float64) *SearchIndex {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SearchIndex{
		store:     store,
		threshold: threshold,
		snapshots: make(map[string]*datasetIndex),
	}
}

// Rebuild scans the store once and replaces the dataset's snapshot. Queries
// running concurrently keep using the previous snapshot until the swap.
func (x *SearchIndex) Rebuild(ctx context.Context, dataset string) error {
	kind, err := domain.KindForDataset(dataset)
	if err != nil {
		return err
	}

	next := newDatasetIndex(kind)
	count := 0
	err = x.store.ForEach(ctx, dataset, func(rec domain.Record) error {
		next.add(rec)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", dataset, err)
	}
	next.finish()

	x.mu.Lock()
	x.snapshots[dataset] = next
	x.mu.Unlock()

	logger.Debug("Index %s: rebuilt with %d records", dataset, count)
	return nil
}

// Ensure rebuilds the dataset's snapshot only when none exists yet, e.g. on
// first query after process start.
func (x *SearchIndex) Ensure(ctx context.Context, dataset string) error {
	x.mu.RLock()
	_, ok := x.snapshots[dataset]
	x.mu.RUnlock()
	if ok {
		return nil
	}
	return x.Rebuild(ctx, dataset)
}

// Drop discards the dataset's snapshot. Used when a dataset is cleared.
func (x *SearchIndex) Drop(dataset string) {
	x.mu.Lock()
	delete(x.snapshots, dataset)
	x.mu.Unlock()
}

// LookupID returns the records with the given ID across the listed datasets.
// A miss is a valid empty result.
func (x *SearchIndex) LookupID(id string, datasets []string) []domain.Match {
	var matches []domain.Match
	for _, dataset := range datasets {
		snap := x.snapshot(dataset)
		if snap == nil {
			continue
		}
		if rec, ok := snap.byID[id]; ok {
			matches = append(matches, domain.Match{Record: rec, Score: 1})
		}
	}
	return matches
}

// SearchContacts runs the fuzzy contact-name search across the listed
// datasets.
func (x *SearchIndex) SearchContacts(term string, datasets []string) []domain.Match {
	return x.fuzzySearch(term, fieldContact, datasets)
}

// SearchTitles runs the fuzzy title search across the listed datasets.
func (x *SearchIndex) SearchTitles(term string, datasets []string) []domain.Match {
	return x.fuzzySearch(term, fieldTitle, datasets)
}

// SearchOrganisations runs the fuzzy organisation-name search and joins each
// matched organisation's projects in, so callers can display projects
// grouped under their organisation without a second query.
func (x *SearchIndex) SearchOrganisations(term string) []domain.Match {
	matches := x.fuzzySearch(term, fieldOrg, []string{domain.DatasetOrganisations})

	projects := x.snapshot(domain.DatasetProjects)
	if projects == nil {
		return matches
	}

	for i := range matches {
		org := matches[i].Record
		ids := projects.byOrgID[org.ID]
		if len(ids) == 0 {
			ids = projects.byOrgName[normalise.Normalise(org.Title)]
		}
		for _, id := range ids {
			matches[i].Projects = append(matches[i].Projects, projects.byID[id])
		}
	}
	return matches
}

// fuzzySearch generates candidates via the inverted token index, scores
// them, filters by threshold and orders them deterministically.
func (x *SearchIndex) fuzzySearch(term string, field indexField, datasets []string) []domain.Match {
	query := normalise.Tokenise(term)
	if len(query) == 0 {
		return nil
	}

	var matches []domain.Match
	for _, dataset := range datasets {
		snap := x.snapshot(dataset)
		if snap == nil {
			continue
		}

		inverted, tokens := snap.field(field)

		// Candidate generation: records sharing at least one exact token
		// with the query.
		candidates := make(map[string]struct{})
		for _, q := range query {
			for _, id := range inverted[q] {
				candidates[id] = struct{}{}
			}
		}

		for id := range candidates {
			score := scoreTokens(query, tokens[id])
			if score < x.threshold {
				continue
			}
			matches = append(matches, domain.Match{Record: snap.byID[id], Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return lessID(matches[i].Record.ID, matches[j].Record.ID)
	})
	return matches
}

// snapshot returns the current immutable snapshot for a dataset, nil when
// none has been built.
func (x *SearchIndex) snapshot(dataset string) *datasetIndex {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snapshots[dataset]
}

func newDatasetIndex(kind domain.EntityKind) *datasetIndex {
	return &datasetIndex{
		kind:           kind,
		byID:           make(map[string]domain.Record),
		contactTokens:  make(map[string][]string),
		orgTokens:      make(map[string][]string),
		titleTokens:    make(map[string][]string),
		byContactToken: make(map[string][]string),
		byOrgToken:     make(map[string][]string),
		byTitleToken:   make(map[string][]string),
		byOrgID:        make(map[string][]string),
		byOrgName:      make(map[string][]string),
	}
}

// add indexes one record. Only called during build, before the swap.
func (ix *datasetIndex) add(rec domain.Record) {
	ix.byID[rec.ID] = rec

	if tokens := normalise.Tokenise(rec.ContactName); len(tokens) > 0 {
		ix.contactTokens[rec.ID] = tokens
		for _, t := range tokens {
			ix.byContactToken[t] = append(ix.byContactToken[t], rec.ID)
		}
	}

	// Organisations carry their name in Title; projects and events name
	// their carrier in OrganisationName.
	orgName := rec.OrganisationName
	if ix.kind == domain.KindOrganisation && orgName == "" {
		orgName = rec.Title
	}
	if tokens := normalise.Tokenise(orgName); len(tokens) > 0 {
		ix.orgTokens[rec.ID] = tokens
		for _, t := range tokens {
			ix.byOrgToken[t] = append(ix.byOrgToken[t], rec.ID)
		}
	}

	if tokens := normalise.Tokenise(rec.Title); len(tokens) > 0 {
		ix.titleTokens[rec.ID] = tokens
		for _, t := range tokens {
			ix.byTitleToken[t] = append(ix.byTitleToken[t], rec.ID)
		}
	}

	if rec.OrganisationID != "" {
		ix.byOrgID[rec.OrganisationID] = append(ix.byOrgID[rec.OrganisationID], rec.ID)
	}
	if name := normalise.Normalise(rec.OrganisationName); name != "" {
		ix.byOrgName[name] = append(ix.byOrgName[name], rec.ID)
	}
}

// finish sorts posting lists so joins and candidate sets iterate in stable
// ID order.
func (ix *datasetIndex) finish() {
	for _, m := range []map[string][]string{
		ix.byContactToken, ix.byOrgToken, ix.byTitleToken, ix.byOrgID, ix.byOrgName,
	} {
		for _, ids := range m {
			sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
		}
	}
}

// field returns the inverted index and per-record token lists for a field.
func (ix *datasetIndex) field(f indexField) (map[string][]string, map[string][]string) {
	switch f {
	case fieldContact:
		return ix.byContactToken, ix.contactTokens
	case fieldOrg:
		return ix.byOrgToken, ix.orgTokens
	default:
		return ix.byTitleToken, ix.titleTokens
	}
}
