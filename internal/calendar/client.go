// Package calendar fetches tracked deadline items from the external
// calendar/deadline service over HTTP.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/linnemanlabs/klaxon/internal/sla"
)

const httpTimeout = 30 * time.Second

// Client implements sla.Feed against the calendar service's tracked-items
// endpoint.
type Client struct {
	endpoint   string
	tenantID   string
	httpClient *http.Client
}

// New creates a calendar client for the given endpoint.
func New(endpoint, tenantID string) *Client {
	return &Client{
		endpoint:   endpoint,
		tenantID:   tenantID,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

type trackedItemsResponse struct {
	Items []sla.TrackedItem `json:"items"`
}

// TrackedItems fetches the current tracked deadline items.
func (c *Client) TrackedItems(ctx context.Context) ([]sla.TrackedItem, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	u.Path = path.Join(u.Path, "api/v1/tracked-items")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("calendar fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20)) // 5 MB
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed trackedItemsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode tracked items: %w", err)
	}
	return parsed.Items, nil
}
