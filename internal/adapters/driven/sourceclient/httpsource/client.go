// Package httpsource provides a source client speaking the gateway
// fetch API: a paginated JSON endpoint that serves raw items for a
// time window. One gateway instance fronts each external system (issue
// tracker, chat export, transcript store, time tracker) so the
// ingestion pipeline only ever sees this one contract.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure the interfaces are implemented.
var (
	_ driven.SourceClient        = (*Client)(nil)
	_ driven.SourceClientFactory = (*Factory)(nil)
)

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 60 * time.Second

// Client fetches raw items from one source gateway.
type Client struct {
	client   *http.Client
	sourceID string
	baseURL  string
	token    string
}

// fetchResponse is the gateway's page envelope.
type fetchResponse struct {
	Items []struct {
		ID         string         `json:"id"`
		Text       string         `json:"text"`
		Metadata   map[string]any `json:"metadata"`
		OccurredAt time.Time      `json:"occurred_at"`
	} `json:"items"`
	NextPage string `json:"next_page,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewClient builds a client for one source.
func NewClient(source domain.Source) (*Client, error) {
	if source.Endpoint == "" {
		return nil, fmt.Errorf("source %q: %w: endpoint is required", source.ID, domain.ErrInvalidInput)
	}
	return &Client{
		client:   &http.Client{Timeout: DefaultTimeout},
		sourceID: source.ID,
		baseURL:  source.Endpoint,
		token:    source.Token,
	}, nil
}

// Source returns the id of the source this client serves.
func (c *Client) Source() string {
	return c.sourceID
}

// FetchWindow returns one page of items that occurred within [start, end).
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time, pageToken string) ([]domain.RawItem, string, error) {
	q := url.Values{}
	q.Set("from", start.UTC().Format(time.RFC3339))
	q.Set("to", end.UTC().Format(time.RFC3339))
	if pageToken != "" {
		q.Set("page", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/items?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("source %q: %w: %v", c.sourceID, domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	var page fetchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	if page.Error != "" {
		return nil, "", fmt.Errorf("source %q: %w: %s", c.sourceID, domain.ErrFetchFailed, page.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source %q: %w: status %d: %s", c.sourceID, domain.ErrFetchFailed, resp.StatusCode, string(body))
	}

	items := make([]domain.RawItem, len(page.Items))
	for i, it := range page.Items {
		items[i] = domain.RawItem{
			NativeID:   it.ID,
			Text:       it.Text,
			Metadata:   it.Metadata,
			OccurredAt: it.OccurredAt,
		}
	}
	return items, page.NextPage, nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

// Factory creates gateway clients from source configuration.
type Factory struct{}

// NewFactory returns a gateway client factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Create builds a client for the given source.
func (f *Factory) Create(_ context.Context, source domain.Source) (driven.SourceClient, error) {
	return NewClient(source)
}
