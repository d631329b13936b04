package domain

import "encoding/json"

// EntityKind identifies which kind of entity a record represents.
type EntityKind string

// Entity kinds cached by bpexplore.
const (
	KindProject      EntityKind = "project"
	KindOrganisation EntityKind = "organisation"
	KindEvent        EntityKind = "event"
)

// Record is one cached entity. Records are immutable once stored; a re-sync
// replaces the whole record by ID (upsert), never patches it.
type Record struct {
	// ID is the remote identifier, unique within the entity kind.
	ID string

	// Kind identifies the entity kind.
	Kind EntityKind

	// Title is the project or event name. For organisations it holds the
	// organisation name.
	Title string

	// OrganisationName is the carrier organisation's name, when known.
	OrganisationName string

	// OrganisationID links a project or event to its carrier organisation.
	OrganisationID string

	// ContactName is the responsible contact person, when known.
	ContactName string

	// DonationsProhibited is set when the entity may not receive donations.
	// Independent of Closed: prohibited-but-open usually means an expired
	// tax-exemption notice of the carrier organisation.
	DonationsProhibited bool

	// Closed is set when the entity is closed for good.
	Closed bool

	// Raw is the original remote payload, kept opaque for display.
	Raw json.RawMessage
}

// Page is one batch of records from the remote source. Pages are idempotent:
// re-fetching and re-upserting the same page is safe.
type Page struct {
	// Records are the entities on this page.
	Records []Record

	// Number is the 1-based page number.
	Number int

	// Last indicates this is the final page of the dataset.
	Last bool
}
