package vectorindex

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// snapshot is the persisted form of an Index. The full state is serialized;
// the search structure is brute-force over the chunk list, so the list alone
// is sufficient to reconstruct the index.
type snapshot struct {
	TenantID  string
	Dimension int
	NextID    uint64
	Chunks    []Chunk
}

// Encode serializes the full index state into an opaque blob suitable for a
// key-value store. Decode on the result reproduces a search-identical index.
func (ix *Index) Encode() ([]byte, error) {
	var buf bytes.Buffer
	snap := snapshot{
		TenantID:  ix.tenantID,
		Dimension: ix.dimension,
		NextID:    ix.nextID,
		Chunks:    ix.chunks,
	}
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("encoding index for tenant %s: %w", ix.tenantID, err)
	}
	return buf.Bytes(), nil
}

// Decode reconstructs an index from a persisted blob. A blob that fails to
// decode, or that violates the never-empty invariant, yields ErrCorruptState;
// the operator must rebuild that tenant's index from its source documents.
func Decode(data []byte) (*Index, error) {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if snap.Dimension <= 0 || len(snap.Chunks) == 0 {
		return nil, fmt.Errorf("%w: empty or dimensionless snapshot", ErrCorruptState)
	}
	for i, c := range snap.Chunks {
		if len(c.Vector) != snap.Dimension {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d",
				ErrCorruptState, i, len(c.Vector), snap.Dimension)
		}
	}
	return &Index{
		tenantID:  snap.TenantID,
		dimension: snap.Dimension,
		nextID:    snap.NextID,
		chunks:    snap.Chunks,
	}, nil
}
