package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/normalise"
)

const (
	defaultTopK          = 10
	defaultOverfetch     = 3
	defaultMinConfidence = 0.6
	defaultHalfLife      = 30 * 24 * time.Hour

	// recencyFloor keeps old records findable: decay never pushes a
	// genuinely relevant result below a tenth of its raw score.
	recencyFloor = 0.1

	closedStatusWeight = 0.8
)

// RetrievalConfig tunes ranking. Zero values use defaults.
type RetrievalConfig struct {
	Sources []domain.Source

	// Overfetch multiplies topK when querying the index so that
	// post-filter reranking still has enough candidates.
	Overfetch int

	// MinConfidence is the threshold below which a learned expansion is
	// ignored.
	MinConfidence float64

	// RecencyHalfLife is the age at which a result's recency multiplier
	// reaches 0.5.
	RecencyHalfLife time.Duration
}

// RetrievalService answers queries against the vector index, applying
// learned query expansion and deterministic ranking boosts.
type RetrievalService struct {
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	expansions driven.ExpansionStore

	weights       map[string]float64
	overfetch     int
	minConfidence float64
	halfLife      time.Duration
	now           func() time.Time
}

var _ driving.Retriever = (*RetrievalService)(nil)

// NewRetrievalService wires the retrieval path. The expansion store is
// optional; pass nil to disable query expansion.
func NewRetrievalService(cfg RetrievalConfig, embedder driven.EmbeddingService, index driven.VectorIndex, expansions driven.ExpansionStore) (*RetrievalService, error) {
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("retrieval service: %w: missing dependency", domain.ErrInvalidInput)
	}

	if cfg.Overfetch <= 0 {
		cfg.Overfetch = defaultOverfetch
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = defaultHalfLife
	}

	weights := make(map[string]float64, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.Weight > 0 {
			weights[src.ID] = src.Weight
		}
	}

	return &RetrievalService{
		embedder:      embedder,
		index:         index,
		expansions:    expansions,
		weights:       weights,
		overfetch:     cfg.Overfetch,
		minConfidence: cfg.MinConfidence,
		halfLife:      cfg.RecencyHalfLife,
		now:           time.Now,
	}, nil
}

// Search embeds the query (plus any learned expansion variants), runs a
// filtered index query with overfetch, reconstructs full results from
// index metadata and reranks deterministically.
func (s *RetrievalService) Search(ctx context.Context, query string, filters domain.SearchFilters, topK int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: %w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	variants, usedTerms := s.expandQuery(ctx, query)

	vectors, err := s.embedder.EmbedBatch(ctx, variants)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", domain.ErrRetrievalUnavailable, err)
	}

	filter := driven.IndexFilter{
		Sources: filters.Sources,
		Project: filters.Project,
		From:    filters.From,
		To:      filters.To,
	}
	fetch := topK * s.overfetch

	// Query once per variant and merge, keeping the best raw score per
	// record so expansion widens recall without double-counting.
	merged := make(map[string]driven.IndexHit)
	for _, vec := range vectors {
		hits, err := s.index.Query(ctx, vec, filter, fetch)
		if err != nil {
			return nil, fmt.Errorf("%w: query index: %v", domain.ErrRetrievalUnavailable, err)
		}
		for _, hit := range hits {
			if prev, ok := merged[hit.ID]; !ok || hit.Score > prev.Score {
				merged[hit.ID] = hit
			}
		}
	}

	now := s.now()
	results := make([]domain.SearchResult, 0, len(merged))
	for _, hit := range merged {
		result := s.reconstruct(hit)
		result.Score = s.boost(hit.Score, result, now)
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].OccurredAt.Equal(results[j].OccurredAt) {
			return results[i].OccurredAt.After(results[j].OccurredAt)
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}

	s.recordFeedback(ctx, usedTerms, len(results) > 0)

	return results, nil
}

// expandQuery returns the query plus one variant per confident learned
// expansion, and the terms whose expansions were applied.
func (s *RetrievalService) expandQuery(ctx context.Context, query string) (variants []string, usedTerms []string) {
	variants = []string{query}
	if s.expansions == nil {
		return variants, nil
	}

	seen := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(query)) {
		token = strings.Trim(token, ".,;:!?\"'()")
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true

		entry, err := s.expansions.Lookup(ctx, token)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("expansion lookup %q: %v", token, err)
			}
			continue
		}
		if entry.Confidence < s.minConfidence {
			continue
		}
		variants = append(variants, replaceToken(query, token, entry.Expanded))
		usedTerms = append(usedTerms, entry.Term)
	}
	return variants, usedTerms
}

// replaceToken swaps one whitespace-delimited token (case-insensitive)
// for its expansion, leaving the rest of the query intact.
func replaceToken(query, token, expanded string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		if strings.EqualFold(strings.Trim(f, ".,;:!?\"'()"), token) {
			fields[i] = expanded
		}
	}
	return strings.Join(fields, " ")
}

// reconstruct builds a full result from index metadata alone. The
// entire metadata map is carried into StructuredFields so source
// specific fields (status, priority, assignee, speaker, hours) survive
// the round trip through the index.
func (s *RetrievalService) reconstruct(hit driven.IndexHit) domain.SearchResult {
	fields := make(map[string]any, len(hit.Metadata))
	for k, v := range hit.Metadata {
		fields[k] = v
	}

	result := domain.SearchResult{
		ID:               hit.ID,
		StructuredFields: fields,
	}
	if v, ok := fields[normalise.KeySource].(string); ok {
		result.Source = v
	}
	if v, ok := fields[normalise.KeyTitle].(string); ok {
		result.Title = v
	}
	if v, ok := fields[normalise.KeyText].(string); ok {
		result.Snippet = v
	}
	if v, ok := fields[normalise.KeyURL].(string); ok {
		result.URL = v
	}
	if v, ok := fields[normalise.KeyAuthor].(string); ok {
		result.Author = v
	}
	if v, ok := fields[normalise.KeyOccurredAt].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			result.OccurredAt = ts
		}
	}
	return result
}

// boost applies the deterministic rerank multipliers: recency decay,
// per-source weight and a mild penalty for closed items.
func (s *RetrievalService) boost(raw float64, result domain.SearchResult, now time.Time) float64 {
	score := raw * s.recencyDecay(result.OccurredAt, now)

	if w, ok := s.weights[result.Source]; ok {
		score *= w
	}

	if status, ok := result.StructuredFields["status"].(string); ok {
		switch strings.ToLower(status) {
		case "closed", "resolved", "done", "cancelled":
			score *= closedStatusWeight
		}
	}
	return score
}

func (s *RetrievalService) recencyDecay(occurredAt, now time.Time) float64 {
	if occurredAt.IsZero() || !occurredAt.Before(now) {
		return 1.0
	}
	age := now.Sub(occurredAt)
	decay := math.Pow(0.5, float64(age)/float64(s.halfLife))
	if decay < recencyFloor {
		return recencyFloor
	}
	return decay
}

// recordFeedback bumps usage counters for applied expansions. Counter
// failures are logged, never surfaced to the caller.
func (s *RetrievalService) recordFeedback(ctx context.Context, terms []string, hadResults bool) {
	if s.expansions == nil {
		return
	}
	for _, term := range terms {
		if err := s.expansions.RecordUse(ctx, term); err != nil {
			logger.Warn("record expansion use %q: %v", term, err)
			continue
		}
		if hadResults {
			if err := s.expansions.RecordSuccess(ctx, term); err != nil {
				logger.Warn("record expansion success %q: %v", term, err)
			}
		}
	}
}
