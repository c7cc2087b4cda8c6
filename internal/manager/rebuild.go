package manager

import (
	"context"
	"fmt"

	"github.com/dayaobuxiao/EchoSage/internal/repository"
	"github.com/dayaobuxiao/EchoSage/internal/vectorindex"
)

// rebuild reconstructs a tenant's index from the given source documents,
// re-running segmentation and embedding for each from scratch. It is
// all-or-nothing: any document that fails to re-process aborts the whole
// rebuild, and the caller leaves the old index in place. The context is
// checked between documents, so cancellation aborts before the swap without
// corrupting anything.
func (m *Manager) rebuild(ctx context.Context, tenantID string, docs []*repository.Document) (*vectorindex.Index, error) {
	var accumulated []vectorindex.Chunk

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rebuild for tenant %s canceled: %w", tenantID, err)
		}

		content, err := m.loader.Load(ctx, doc.Ref)
		if err != nil {
			return nil, &SourceUnavailableError{Ref: doc.Ref, Err: err}
		}

		segs := m.seg.Segment(string(content))
		if len(segs) == 0 {
			m.logger.Warn("document yielded no chunks during rebuild, skipping",
				"tenant", tenantID, "ref", doc.Ref)
			continue
		}

		texts := make([]string, len(segs))
		for i, s := range segs {
			texts[i] = s.Text
		}
		vectors, err := m.embed.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("re-embedding document %s for tenant %s: %w", doc.Ref, tenantID, err)
		}

		for i := range segs {
			accumulated = append(accumulated, vectorindex.Chunk{
				DocumentRef: doc.Ref,
				Text:        segs[i].Text,
				Vector:      vectors[i],
			})
		}
	}

	// The rebuilt index gets the placeholder seed even when documents
	// remain: a tenant must never end up with an unsearchable empty index,
	// and keeping the seed uniform makes the state shape predictable.
	next, err := m.createIndex(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(accumulated) > 0 {
		if _, err := next.Append(accumulated); err != nil {
			return nil, fmt.Errorf("assembling rebuilt index for tenant %s: %w", tenantID, err)
		}
	}

	m.logger.Info("rebuilt index",
		"tenant", tenantID, "documents", len(docs), "chunks", next.Len())
	return next, nil
}
