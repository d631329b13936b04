// Package betterplace fetches dataset pages from the betterplace.org
// public JSON API.
package betterplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/florianmw/bpexplore/internal/core/domain"
	"github.com/florianmw/bpexplore/internal/core/ports/driven"
	"github.com/florianmw/bpexplore/internal/logger"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.betterplace.org/de/api_v4"

// Ensure Client implements the interface.
var _ driven.PageFetcher = (*Client)(nil)

// Client is a rate-limited HTTP client for the paged dataset endpoints.
// Page fetches are idempotent: the API serves stable pages for a given
// page/per_page pair, and re-upserting a page is safe.
type Client struct {
	baseURL    string
	perPage    int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOptions tunes the API client. Zero values fall back to defaults.
type ClientOptions struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// PerPage is the page size requested from the API.
	PerPage int

	// RequestsPerSecond caps the request rate.
	RequestsPerSecond float64
}

// NewClient creates a new API client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 200
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	return &Client{
		baseURL:    opts.BaseURL,
		perPage:    opts.PerPage,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// envelope is the paging wrapper around every list endpoint.
type envelope struct {
	TotalEntries int               `json:"total_entries"`
	TotalPages   int               `json:"total_pages"`
	CurrentPage  int               `json:"current_page"`
	Data         []json.RawMessage `json:"data"`
}

// entityPayload carries the record fields bpexplore extracts; the full
// payload is preserved verbatim in Record.Raw.
type entityPayload struct {
	ID                  json.Number `json:"id"`
	Title               string      `json:"title"`
	Name                string      `json:"name"`
	DonationsProhibited bool        `json:"donations_prohibited"`
	ClosedAt            *string     `json:"closed_at"`
	Carrier             *struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"carrier"`
	Contact *struct {
		Name string `json:"name"`
	} `json:"contact"`
}

// FetchPage retrieves one page of a dataset.
func (c *Client) FetchPage(ctx context.Context, dataset string, page int) (*domain.Page, error) {
	kind, err := domain.KindForDataset(dataset)
	if err != nil {
		return nil, err
	}
	path, err := endpointFor(dataset)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?page=%d&per_page=%d", c.baseURL, path, page, c.perPage)
	logger.Debug("Fetching %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s page %d: %w", dataset, page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("fetching %s page %d: unexpected status %d", dataset, page, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s page %d: %w", dataset, page, err)
	}

	records := make([]domain.Record, 0, len(env.Data))
	for _, raw := range env.Data {
		rec, err := mapRecord(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("mapping %s page %d: %w", dataset, page, err)
		}
		records = append(records, rec)
	}

	return &domain.Page{
		Records: records,
		Number:  page,
		Last:    env.TotalPages == 0 || page >= env.TotalPages,
	}, nil
}

// endpointFor maps a dataset name to its API path.
func endpointFor(dataset string) (string, error) {
	switch dataset {
	case domain.DatasetProjects:
		return "projects.json", nil
	case domain.DatasetOrganisations:
		return "organisations.json", nil
	case domain.DatasetEvents:
		return "fundraising_events.json", nil
	default:
		return "", domain.ErrUnknownDataset
	}
}

// mapRecord extracts the indexed fields from one raw payload item.
func mapRecord(raw json.RawMessage, kind domain.EntityKind) (domain.Record, error) {
	var p entityPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Record{}, err
	}
	if p.ID.String() == "" {
		return domain.Record{}, fmt.Errorf("record without id: %w", domain.ErrInvalidInput)
	}

	rec := domain.Record{
		ID:                  p.ID.String(),
		Kind:                kind,
		Title:               p.Title,
		DonationsProhibited: p.DonationsProhibited,
		Closed:              p.ClosedAt != nil && *p.ClosedAt != "",
		Raw:                 raw,
	}

	// Organisations carry their name in "name"; projects and events in
	// "title".
	if rec.Title == "" {
		rec.Title = p.Name
	}
	if p.Carrier != nil {
		rec.OrganisationName = p.Carrier.Name
		rec.OrganisationID = p.Carrier.ID.String()
	}
	if p.Contact != nil {
		rec.ContactName = p.Contact.Name
	}

	return rec, nil
}
