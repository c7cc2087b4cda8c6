package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// DefaultHashDimension is the vector size of the hash embedder.
const DefaultHashDimension = 64

// HashEmbedder derives a vector from a SHA-256 expansion of the input text.
// It has no notion of semantic similarity, but it is deterministic, offline,
// and dimension-stable, which is what tests and air-gapped deployments need:
// identical text always maps to the identical L2-normalized vector.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder with the given dimension,
// defaulting to DefaultHashDimension when dim is not positive.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dim}
}

// Embed maps text to its deterministic vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimension)
	digest := sha256.Sum256([]byte(text))
	var norm float64
	for i := 0; i < e.dimension; i++ {
		if i%4 == 0 && i > 0 {
			// Re-hash to extend the byte stream past one digest.
			digest = sha256.Sum256(digest[:])
		}
		bits := binary.BigEndian.Uint32(digest[(i%8)*4 : (i%8)*4+4])
		// Map to [-1, 1).
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the configured vector size.
func (e *HashEmbedder) Dimension() int { return e.dimension }

// ModelName identifies the fixture model.
func (e *HashEmbedder) ModelName() string { return "hash-sha256" }

var _ Embedder = (*HashEmbedder)(nil)
