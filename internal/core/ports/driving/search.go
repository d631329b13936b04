package driving

import (
	"context"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

// QueryRouter answers the four search modes against the cached data.
// It validates that exactly one mode is active and refuses to query
// datasets that are not ready.
type QueryRouter interface {
	// Search dispatches the single active search mode.
	// Returns domain.ErrInvalidQuery when zero or several fields are
	// populated and domain.ErrNotReady when the datasets the mode depends
	// on are not in the ready state. An ID miss is a valid empty result,
	// not an error.
	Search(ctx context.Context, terms domain.SearchTerms) (*domain.Result, error)
}
