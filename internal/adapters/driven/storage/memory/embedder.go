package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// embedderDimensions is the fixed vector size of the fake embedder.
const embedderDimensions = 64

// Embedder is a deterministic, offline implementation of
// driven.EmbeddingService. Each token hashes into a bucket of a fixed-size
// bag-of-words vector, so identical texts always embed identically and
// texts sharing tokens are cosine-similar. Good enough to exercise the
// full pipeline without a network.
type Embedder struct{}

// NewEmbedder creates a deterministic in-memory embedder.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// Embed generates a vector for the given text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embedderDimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,;:!?()[]{}\"'")
		if token == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%embedderDimensions]++
	}

	// L2-normalise so scores are comparable across text lengths.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

// EmbedBatch generates vectors for multiple texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return embedderDimensions
}

// ModelName returns the name of the embedding model.
func (e *Embedder) ModelName() string {
	return "memory-bow-64"
}

// Ping validates the service is reachable.
func (e *Embedder) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (e *Embedder) Close() error {
	return nil
}
