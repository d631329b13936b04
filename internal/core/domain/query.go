package domain

import "strings"

// SearchMode identifies which of the four search modes a query uses.
type SearchMode string

// Search modes. Exactly one is active per query.
const (
	ModeID      SearchMode = "id"
	ModeContact SearchMode = "contact"
	ModeOrg     SearchMode = "org"
	ModeTitle   SearchMode = "title"
)

// SearchTerms is the query input shape shared with the UI layer. The caller
// guarantees at most one non-empty field; the router re-validates anyway
// because it may be invoked outside the form.
type SearchTerms struct {
	// IDTerm is an exact entity ID.
	IDTerm string

	// ContactTerm is a (possibly partial) contact name.
	ContactTerm string

	// OrgTerm is a (possibly partial) organisation name.
	OrgTerm string

	// TitleTerm is a (possibly partial) project or event name.
	TitleTerm string
}

// Trimmed returns a copy with all terms trimmed of surrounding whitespace.
func (t SearchTerms) Trimmed() SearchTerms {
	return SearchTerms{
		IDTerm:      strings.TrimSpace(t.IDTerm),
		ContactTerm: strings.TrimSpace(t.ContactTerm),
		OrgTerm:     strings.TrimSpace(t.OrgTerm),
		TitleTerm:   strings.TrimSpace(t.TitleTerm),
	}
}

// Mode returns the single active search mode, or ErrInvalidQuery when zero
// or more than one field is populated.
func (t SearchTerms) Mode() (SearchMode, error) {
	t = t.Trimmed()

	var mode SearchMode
	count := 0
	if t.IDTerm != "" {
		mode = ModeID
		count++
	}
	if t.ContactTerm != "" {
		mode = ModeContact
		count++
	}
	if t.OrgTerm != "" {
		mode = ModeOrg
		count++
	}
	if t.TitleTerm != "" {
		mode = ModeTitle
		count++
	}

	if count != 1 {
		return "", ErrInvalidQuery
	}
	return mode, nil
}

// Term returns the value of the active field for the given mode.
func (t SearchTerms) Term(mode SearchMode) string {
	t = t.Trimmed()
	switch mode {
	case ModeID:
		return t.IDTerm
	case ModeContact:
		return t.ContactTerm
	case ModeOrg:
		return t.OrgTerm
	case ModeTitle:
		return t.TitleTerm
	default:
		return ""
	}
}

// Match is a single search hit.
type Match struct {
	// Record is the matched entity.
	Record Record

	// Score is the similarity score in [0, 1.1]; exact ID hits score 1.
	Score float64

	// Projects holds the organisation's projects for organisation-mode
	// results, so callers can group projects under their organisation
	// without a second query.
	Projects []Record
}

// Result is the uniform search result shape.
type Result struct {
	// Mode is the resolved search mode.
	Mode SearchMode

	// Matches are ordered by descending score, ties by ascending ID.
	Matches []Match

	// TookMs is the query duration in milliseconds.
	TookMs int64
}
