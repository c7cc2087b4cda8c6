// Package embedder provides interfaces and implementations for text embedding.
package embedder

import (
	"context"
	"errors"
)

// ErrEmbedding wraps all embedding service failures: unreachable service,
// non-2xx responses, malformed payloads. Match with errors.Is.
var ErrEmbedding = errors.New("embedding service failure")

// Embedder converts text into fixed-dimension vectors. Implementations must
// be deterministic for identical input.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs,
	// returned in input order. The batch either fully succeeds or fails.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
