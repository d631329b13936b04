package driving

import (
	"context"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

// SyncEngine keeps the local record store synchronised with the remote
// source and owns the lifecycle status of every dataset. It is the sole
// mutator of dataset status; all other components only read it.
type SyncEngine interface {
	// StartSync runs a full sync pass for a dataset, blocking until the
	// pass completes or fails. Idempotent: returns domain.ErrSyncInProgress
	// while a pass for the same dataset is already running.
	StartSync(ctx context.Context, dataset string) error

	// Resync cancels any in-flight sync for the dataset, then starts a
	// fresh pass. Existing records are upserted, never cleared first, so a
	// failed re-sync cannot wipe previously-ready data.
	Resync(ctx context.Context, dataset string) error

	// SyncAll syncs all configured datasets concurrently.
	SyncAll(ctx context.Context) error

	// Status returns the current lifecycle status of a dataset, falling
	// back to persisted metadata from a previous session.
	Status(ctx context.Context, dataset string) (domain.CacheDataset, error)

	// Subscribe returns a channel of status transitions. The channel is
	// buffered; slow consumers drop notifications rather than block syncs.
	Subscribe() <-chan domain.StatusChange
}
