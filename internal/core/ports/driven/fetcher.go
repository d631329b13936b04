package driven

import (
	"context"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

// PageFetcher retrieves remote dataset records one page at a time.
// Fetching is idempotent per page: re-fetching and re-upserting the same
// page is safe. Transport mechanics (HTTP client, pagination protocol) are
// the adapter's concern; the sync engine only sees pages and errors.
type PageFetcher interface {
	// FetchPage retrieves the given 1-based page of a dataset.
	// The context carries the per-attempt timeout set by the caller.
	FetchPage(ctx context.Context, dataset string, page int) (*domain.Page, error)
}
