package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// mockRetriever implements driving.Retriever for testing.
type mockRetriever struct {
	results     []domain.SearchResult
	err         error
	lastCtx     context.Context
	lastQuery   string
	lastFilters domain.SearchFilters
	lastTopK    int
}

func (m *mockRetriever) Search(ctx context.Context, query string, filters domain.SearchFilters, topK int) ([]domain.SearchResult, error) {
	m.lastCtx = ctx
	m.lastQuery = query
	m.lastFilters = filters
	m.lastTopK = topK
	return m.results, m.err
}

func setupSearchTest(mock *mockRetriever) func() {
	restore := stubConfig()
	oldRetrieval := retrievalService
	retrievalService = mock
	return func() {
		retrievalService = oldRetrieval
		searchLimit = 10
		searchJSON = false
		searchSources = nil
		searchProject = ""
		searchSince = ""
		restore()
	}
}

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	cleanup := setupSearchTest(&mockRetriever{})
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	mock := &mockRetriever{results: []domain.SearchResult{
		{
			ID:         "jira:TICKET-12",
			Source:     "jira",
			Title:      "Payment webhook retries",
			Snippet:    "Webhook retries were capped at three attempts",
			URL:        "https://jira.example.com/TICKET-12",
			OccurredAt: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
			Score:      0.91,
		},
	}}
	cleanup := setupSearchTest(mock)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "webhook retries"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Equal(t, "webhook retries", mock.lastQuery)
	assert.Equal(t, 10, mock.lastTopK)
	assert.Contains(t, buf.String(), "Payment webhook retries (0.91)")
	assert.Contains(t, buf.String(), "Source: jira  2026-02-03")
	assert.Contains(t, buf.String(), "https://jira.example.com/TICKET-12")
}

func TestSearchCmd_NoResults(t *testing.T) {
	cleanup := setupSearchTest(&mockRetriever{})
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "nothing here"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found.")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	mock := &mockRetriever{results: []domain.SearchResult{
		{ID: "jira:TICKET-12", Source: "jira", Score: 0.5,
			StructuredFields: map[string]any{"status": "closed", "priority": "high"}},
	}}
	cleanup := setupSearchTest(mock)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "webhook", "--json"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"jira:TICKET-12"`)
	assert.Contains(t, buf.String(), `"status": "closed"`)
}

func TestSearchCmd_FilterFlags(t *testing.T) {
	mock := &mockRetriever{}
	cleanup := setupSearchTest(mock)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "webhook", "--source", "jira,slack", "--project", "PAY", "--since", "168h", "-n", "5"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Equal(t, []string{"jira", "slack"}, mock.lastFilters.Sources)
	assert.Equal(t, "PAY", mock.lastFilters.Project)
	assert.False(t, mock.lastFilters.From.IsZero())
	assert.Equal(t, 5, mock.lastTopK)
}

func TestSearchCmd_PropagatesCommandContext(t *testing.T) {
	mock := &mockRetriever{}
	cleanup := setupSearchTest(mock)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "webhook"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	require.NoError(t, err)
	require.NotNil(t, mock.lastCtx)

	// cancelling the command context must reach the retrieval call
	assert.NoError(t, mock.lastCtx.Err())
	cancel()
	assert.ErrorIs(t, mock.lastCtx.Err(), context.Canceled)
}

func TestSearchCmd_BadSince(t *testing.T) {
	cleanup := setupSearchTest(&mockRetriever{})
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search", "webhook", "--since", "last week"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad --since value")
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	restore := stubConfig()
	oldRetrieval := retrievalService
	retrievalService = nil
	defer func() {
		retrievalService = oldRetrieval
		restore()
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search", "anything"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval service not configured")
}
