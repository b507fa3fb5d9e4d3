// Package ops provides the operator HTTP surface: source freshness for
// dashboards and a manual ingestion trigger for catch-up after
// incidents. It is an internal tool, bound to localhost by default and
// guarded by a shared operator token.
package ops

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// TokenHeader carries the operator credential.
const TokenHeader = "X-Recall-Token"

// Server serves the operator endpoints.
type Server struct {
	status   driving.StatusReporter
	ingestor driving.Ingestor
	runs     driven.RunStore
	token    string

	server   *http.Server
	listener net.Listener
}

// NewServer builds the operator server. The token is required; an ops
// surface without a credential refuses to start. The run store is
// optional.
func NewServer(token string, status driving.StatusReporter, ingestor driving.Ingestor, runs driven.RunStore) (*Server, error) {
	if token == "" {
		return nil, fmt.Errorf("ops server: %w: operator token is required", domain.ErrInvalidInput)
	}
	if status == nil || ingestor == nil {
		return nil, fmt.Errorf("ops server: %w: missing dependency", domain.ErrInvalidInput)
	}

	s := &Server{
		status:   status,
		ingestor: ingestor,
		runs:     runs,
		token:    token,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.auth(s.handleStatus))
	mux.HandleFunc("GET /runs", s.auth(s.handleRuns))
	mux.HandleFunc("POST /ingest/{source}", s.auth(s.handleIngest))

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

// Start listens on addr and serves in a background goroutine.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ops server: listen on %s: %w", addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server: %v", err)
		}
	}()
	logger.Info("ops server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid operator token")
			return
		}
		next(w, r)
	}
}

// statusResponse is the JSON shape of GET /status.
type statusResponse struct {
	Sources []sourceStatus `json:"sources"`
}

type sourceStatus struct {
	Source         string `json:"source"`
	LastSync       string `json:"last_sync,omitempty"`
	Age            string `json:"age,omitempty"`
	Stale          bool   `json:"stale"`
	Running        bool   `json:"running"`
	StuckSince     string `json:"stuck_since,omitempty"`
	PendingBatches int    `json:"pending_batches"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.status.SourceStatuses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := statusResponse{Sources: make([]sourceStatus, 0, len(statuses))}
	for _, st := range statuses {
		out := sourceStatus{
			Source:         st.Source,
			Stale:          st.IsStale,
			Running:        st.Running,
			PendingBatches: st.PendingBatches,
		}
		if !st.LastSync.IsZero() {
			out.LastSync = st.LastSync.Format(time.RFC3339)
			out.Age = st.Age.Truncate(time.Second).String()
		}
		if !st.StuckSince.IsZero() {
			out.StuckSince = st.StuckSince.Format(time.RFC3339)
		}
		resp.Sources = append(resp.Sources, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

// runResponse is one entry in GET /runs.
type runResponse struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Started  string `json:"started"`
	Ended    string `json:"ended"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Failed   int    `json:"failed"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history not enabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("source"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runResponse{
			ID:       run.ID,
			Source:   run.Source,
			Started:  run.StartedAt.Format(time.RFC3339),
			Ended:    run.EndedAt.Format(time.RFC3339),
			Success:  run.Success,
			Error:    run.Error,
			Fetched:  run.Report.Fetched,
			Upserted: run.Report.Upserted,
			Failed:   run.Report.Failed,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ingestResponse is the JSON shape of POST /ingest/{source}.
type ingestResponse struct {
	Source   string   `json:"source"`
	Fetched  int      `json:"fetched"`
	Upserted int      `json:"upserted"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// handleIngest triggers a synchronous backfill for one source. An
// optional days query parameter widens the window; without it the run
// picks up from the source's sync state.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source")

	var window domain.Window
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		now := time.Now()
		window = domain.Window{Start: now.AddDate(0, 0, -days), End: now}
	}

	report, err := s.ingestor.RunIngestion(r.Context(), sourceID, window)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown source %q", sourceID))
		return
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, fmt.Sprintf("source %q is already syncing", sourceID))
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Source:   report.Source,
		Fetched:  report.Fetched,
		Upserted: report.Upserted,
		Failed:   report.Failed,
		Skipped:  report.Skipped,
		Errors:   report.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("ops server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(msg)})
}
