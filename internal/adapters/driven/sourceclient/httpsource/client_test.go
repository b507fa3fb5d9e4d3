package httpsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestFetchWindow_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/items", r.URL.Path)
		require.Equal(t, "Bearer gateway-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))

		switch r.URL.Query().Get("page") {
		case "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "TICKET-1", "text": "first", "occurred_at": "2026-08-01T10:00:00Z", "metadata": map[string]any{"key": "TICKET-1"}},
				},
				"next_page": "p2",
			})
		case "p2":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"id": "TICKET-2", "text": "second", "occurred_at": "2026-08-02T10:00:00Z"},
				},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	client, err := NewClient(domain.Source{ID: "jira", Endpoint: server.URL, Token: "gateway-token"})
	require.NoError(t, err)
	defer client.Close()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	items, next, err := client.FetchWindow(context.Background(), start, end, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "TICKET-1", items[0].NativeID)
	assert.Equal(t, "TICKET-1", items[0].Metadata["key"])
	assert.Equal(t, "p2", next)

	items, next, err = client.FetchWindow(context.Background(), start, end, next)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "TICKET-2", items[0].NativeID)
	assert.Empty(t, next)
}

func TestFetchWindow_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "upstream issue tracker unavailable"})
	}))
	defer server.Close()

	client, err := NewClient(domain.Source{ID: "jira", Endpoint: server.URL})
	require.NoError(t, err)

	_, _, err = client.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now(), "")
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "upstream issue tracker unavailable")
}

func TestFetchWindow_ConnectionRefused(t *testing.T) {
	client, err := NewClient(domain.Source{ID: "jira", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, _, err = client.FetchWindow(context.Background(), time.Now().Add(-time.Hour), time.Now(), "")
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(domain.Source{ID: "jira"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFactory_Create(t *testing.T) {
	factory := NewFactory()
	client, err := factory.Create(context.Background(), domain.Source{ID: "jira", Endpoint: "http://localhost:9090"})
	require.NoError(t, err)
	assert.Equal(t, "jira", client.Source())
}
