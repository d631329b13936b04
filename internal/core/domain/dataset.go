package domain

import "time"

// SchemaVersion is the record schema this build reads and writes.
// A persisted dataset carrying a different version is treated as absent,
// which forces a full re-sync.
const SchemaVersion = 1

// Dataset names. Each dataset is synced and queried independently.
const (
	DatasetProjects      = "projects"
	DatasetOrganisations = "organisations"
	DatasetEvents        = "events"
)

// Datasets returns all configured dataset names in a stable order.
func Datasets() []string {
	return []string{DatasetProjects, DatasetOrganisations, DatasetEvents}
}

// KindForDataset maps a dataset name to the entity kind it holds.
func KindForDataset(name string) (EntityKind, error) {
	switch name {
	case DatasetProjects:
		return KindProject, nil
	case DatasetOrganisations:
		return KindOrganisation, nil
	case DatasetEvents:
		return KindEvent, nil
	default:
		return "", ErrUnknownDataset
	}
}

// CacheStatus is the lifecycle state of a cached dataset. The UI layer gates
// its inputs on this value, one instance per dataset family.
type CacheStatus string

// Dataset lifecycle states.
const (
	StatusIdle    CacheStatus = "idle"
	StatusSyncing CacheStatus = "syncing"
	StatusReady   CacheStatus = "ready"
	StatusFailed  CacheStatus = "failed"
)

// CanStartSync reports whether a sync may be started from this state.
// Idle, ready and failed datasets can (re-)enter syncing; a dataset that is
// already syncing cannot.
func (s CacheStatus) CanStartSync() bool {
	return s != StatusSyncing
}

// CacheDataset is the sync metadata of one dataset. It is owned and mutated
// exclusively by the sync engine; all other components only read it.
type CacheDataset struct {
	// Name is the dataset name.
	Name string

	// Status is the current lifecycle state.
	Status CacheStatus

	// LastSyncedAt is when the last full pass completed successfully.
	LastSyncedAt time.Time

	// RecordCount is the number of records committed to the store.
	RecordCount int
}

// StatusChange is a status transition notification for subscribers.
type StatusChange struct {
	// Dataset is the dataset whose status changed.
	Dataset string

	// Status is the new lifecycle state.
	Status CacheStatus
}
