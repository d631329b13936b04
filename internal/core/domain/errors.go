package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownDataset indicates a dataset name that is not configured.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrSyncInProgress indicates a sync is already running for the dataset.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrSchemaMismatch indicates the persisted schema version differs from
	// the version this build expects. The dataset must be treated as absent
	// and fully re-synced rather than read with the wrong shape.
	ErrSchemaMismatch = errors.New("schema version mismatch")

	// ErrNotReady indicates a query was attempted against a dataset that is
	// not in the ready state. Distinct from ErrNotFound so callers can
	// explain "still syncing" rather than "no results".
	ErrNotReady = errors.New("dataset not ready")

	// ErrInvalidQuery indicates the search terms populate more than one
	// field, or none at all.
	ErrInvalidQuery = errors.New("invalid query")
)
