// Package vectorindex implements the per-tenant similarity index: an ordered,
// append-only collection of text chunks with their embedding vectors, searched
// by brute-force cosine similarity.
//
// The index deliberately exposes no point-delete operation. Removing content
// means building a fresh index from the surviving source documents and swapping
// it in wholesale; see the manager package for the rebuild workflow.
//
// An Index is not safe for concurrent use. Callers serialize access; the
// manager package holds one RWMutex per tenant for this purpose.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrMissingVector is returned when an appended chunk has no embedding.
	ErrMissingVector = errors.New("chunk has no embedding vector")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCorruptState is returned when a persisted index cannot be decoded.
	// The tenant's index must be rebuilt from its source documents.
	ErrCorruptState = errors.New("corrupt persisted index state")
)

// PlaceholderText is the seed entry every freshly created index contains.
// Similarity search over an empty collection is undefined, so an index always
// holds at least this one chunk. The text matches what existing persisted
// stores were seeded with and must not change.
const PlaceholderText = "Initial empty document"

// PlaceholderRef is the document reference carried by the placeholder chunk.
const PlaceholderRef = ""

// Chunk is the unit of retrieval: a span of document text plus its embedding.
// Chunks are immutable once appended. ID is unique within one tenant's index
// and assigned monotonically at insertion time.
type Chunk struct {
	ID          uint64
	DocumentRef string
	Text        string
	Vector      []float32
}

// SearchResult pairs a chunk with its cosine similarity to the query vector.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Index holds one tenant's chunks and answers nearest-neighbor queries.
type Index struct {
	tenantID  string
	dimension int
	nextID    uint64
	chunks    []Chunk
}

// New creates an index containing only the given seed chunk. The seed's
// vector fixes the index dimension. The seed is normally the placeholder
// chunk; see PlaceholderText.
func New(tenantID string, seed Chunk) (*Index, error) {
	if len(seed.Vector) == 0 {
		return nil, fmt.Errorf("seed chunk: %w", ErrMissingVector)
	}
	ix := &Index{
		tenantID:  tenantID,
		dimension: len(seed.Vector),
		nextID:    1,
	}
	if _, err := ix.Append([]Chunk{seed}); err != nil {
		return nil, err
	}
	return ix, nil
}

// TenantID returns the tenant this index belongs to.
func (ix *Index) TenantID() string { return ix.tenantID }

// Dimension returns the embedding dimension the index was created with.
func (ix *Index) Dimension() int { return ix.dimension }

// Len returns the number of chunks, including the placeholder.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks returns the chunk list in insertion order. The returned slice must
// not be modified.
func (ix *Index) Chunks() []Chunk { return ix.chunks }

// Append adds chunks to the index in the given order and returns their
// assigned IDs. Every chunk must carry a vector of the index dimension;
// otherwise nothing is appended. Append never removes existing chunks.
func (ix *Index) Append(chunks []Chunk) ([]uint64, error) {
	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return nil, fmt.Errorf("chunk %d: %w", i, ErrMissingVector)
		}
		if len(c.Vector) != ix.dimension {
			return nil, fmt.Errorf("chunk %d: got %d, index has %d: %w",
				i, len(c.Vector), ix.dimension, ErrDimensionMismatch)
		}
	}

	ids := make([]uint64, len(chunks))
	for i, c := range chunks {
		c.ID = ix.nextID
		ix.nextID++
		ids[i] = c.ID
		ix.chunks = append(ix.chunks, c)
	}
	return ids, nil
}

// Search returns up to k chunks ordered by descending cosine similarity to
// the query vector. Ties are broken by insertion order, earlier chunk first.
func (ix *Index) Search(query []float32, k int) ([]SearchResult, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query vector: got %d, index has %d: %w",
			len(query), ix.dimension, ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil
	}

	scores := make([]float32, len(ix.chunks))
	for i := range ix.chunks {
		scores[i] = cosineSimilarity(query, ix.chunks[i].Vector)
	}

	order := make([]int, len(ix.chunks))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]SearchResult, 0, k)
	for _, idx := range order[:k] {
		results = append(results, SearchResult{Chunk: ix.chunks[idx], Score: scores[idx]})
	}
	return results, nil
}

// ChunksForDocument returns all chunks belonging to the given source document,
// in insertion order.
func (ix *Index) ChunksForDocument(ref string) []Chunk {
	var out []Chunk
	for _, c := range ix.chunks {
		if c.DocumentRef == ref {
			out = append(out, c)
		}
	}
	return out
}

// Documents returns the distinct source document references present in the
// index, in first-insertion order. The placeholder chunk is excluded.
func (ix *Index) Documents() []string {
	seen := make(map[string]struct{})
	var refs []string
	for _, c := range ix.chunks {
		if c.DocumentRef == PlaceholderRef {
			continue
		}
		if _, ok := seen[c.DocumentRef]; ok {
			continue
		}
		seen[c.DocumentRef] = struct{}{}
		refs = append(refs, c.DocumentRef)
	}
	return refs
}

// Clone returns a copy of the index that shares chunk vectors (chunks are
// immutable) but owns its own chunk list, so appends to the clone leave the
// original untouched.
func (ix *Index) Clone() *Index {
	chunks := make([]Chunk, len(ix.chunks))
	copy(chunks, ix.chunks)
	return &Index{
		tenantID:  ix.tenantID,
		dimension: ix.dimension,
		nextID:    ix.nextID,
		chunks:    chunks,
	}
}

// cosineSimilarity computes dot(a,b) / (|a| * |b|). Zero vectors score zero.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
