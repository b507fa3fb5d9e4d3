// Package httpindex provides a vector index adapter speaking a JSON
// HTTP API, the contract exposed by the deployed index service. The
// index stores vectors with their full metadata documents and supports
// native filtering at query time.
package httpindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultCollection = "recall"
)

// Config holds configuration for the index client.
type Config struct {
	// BaseURL is the index service base URL (required).
	BaseURL string

	// APIKey authenticates requests, sent as a bearer token when set.
	APIKey string

	// Collection is the vector collection name (default: recall).
	Collection string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Index is an HTTP client for the external vector index service.
type Index struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	collection string
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type point struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

type queryRequest struct {
	Vector []float32    `json:"vector"`
	TopK   int          `json:"top_k"`
	Filter *queryFilter `json:"filter,omitempty"`
}

type queryFilter struct {
	Sources []string `json:"sources,omitempty"`
	Project string   `json:"project,omitempty"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
}

type queryResponse struct {
	Hits []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"hits"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewIndex creates a new index client.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpindex: %w: base URL is required", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
	}, nil
}

// Upsert inserts or replaces a single entry keyed by its id.
func (x *Index) Upsert(ctx context.Context, entry driven.IndexEntry) error {
	return x.UpsertBatch(ctx, []driven.IndexEntry{entry})
}

// UpsertBatch inserts or replaces entries in one request. Re-upserting
// an existing id overwrites it; the index never duplicates ids.
func (x *Index) UpsertBatch(ctx context.Context, entries []driven.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]point, len(entries))
	for i, e := range entries {
		points[i] = point{ID: e.ID, Vector: e.Vector, Metadata: e.Metadata}
	}

	return x.post(ctx, x.collectionPath("/points"), upsertRequest{Points: points}, nil)
}

// Query returns the topK nearest entries satisfying the filter.
func (x *Index) Query(ctx context.Context, vector []float32, filter driven.IndexFilter, topK int) ([]driven.IndexHit, error) {
	req := queryRequest{Vector: vector, TopK: topK}
	if f := toQueryFilter(filter); f != nil {
		req.Filter = f
	}

	var resp queryResponse
	if err := x.post(ctx, x.collectionPath("/query"), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]driven.IndexHit, len(resp.Hits))
	for i, h := range resp.Hits {
		hits[i] = driven.IndexHit{ID: h.ID, Score: h.Score, Metadata: h.Metadata}
	}
	return hits, nil
}

// Delete removes an entry by id.
func (x *Index) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, x.baseURL+x.collectionPath("/points/"+id), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return x.do(req, nil)
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

func (x *Index) collectionPath(suffix string) string {
	return "/collections/" + x.collection + suffix
}

func toQueryFilter(filter driven.IndexFilter) *queryFilter {
	if len(filter.Sources) == 0 && filter.Project == "" && filter.From.IsZero() && filter.To.IsZero() {
		return nil
	}
	f := &queryFilter{
		Sources: filter.Sources,
		Project: filter.Project,
	}
	if !filter.From.IsZero() {
		f.From = filter.From.Format(time.RFC3339)
	}
	if !filter.To.IsZero() {
		f.To = filter.To.Format(time.RFC3339)
	}
	return f
}

func (x *Index) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return x.do(req, out)
}

func (x *Index) do(req *http.Request, out any) error {
	if x.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("index: %w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("index: %w: status %d: %s", domain.ErrIndexUnavailable, resp.StatusCode, errorMessage(body))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index: status %d: %s", resp.StatusCode, errorMessage(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	return string(body)
}
