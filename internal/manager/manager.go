// Package manager owns the per-tenant index lifecycle: load-or-create,
// ingestion, persistence, and the rebuild-on-delete workflow.
//
// Operations on different tenants run concurrently and share no mutable
// state. Within one tenant, mutations (AddDocument, RemoveDocument) are
// serialized by a per-tenant lock; queries take the same lock shared, so a
// read always observes a fully persisted state.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dayaobuxiao/EchoSage/internal/blob"
	"github.com/dayaobuxiao/EchoSage/internal/embedder"
	"github.com/dayaobuxiao/EchoSage/internal/repository"
	"github.com/dayaobuxiao/EchoSage/internal/segment"
	"github.com/dayaobuxiao/EchoSage/internal/vectorindex"
)

// ErrPersist is returned when the new index state cannot be written. The
// previous persisted state is left intact.
var ErrPersist = errors.New("persisting index state failed")

// SourceUnavailableError reports a source document that could not be
// re-processed. A rebuild that hits one aborts wholesale and leaves the old
// index untouched.
type SourceUnavailableError struct {
	Ref string
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source document %s unavailable: %v", e.Ref, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// Loader resolves a document reference to its raw content. It is the
// interface to the out-of-scope file storage collaborator.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// FileLoader loads document references as filesystem paths.
type FileLoader struct{}

// Load reads the file at ref.
func (FileLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(ref)
}

// Stats is a caller-visible summary of one tenant's index state.
type Stats struct {
	TenantID   string
	ChunkCount int      // includes the placeholder chunk
	Documents  []string // distinct source refs in the index
}

// tenantState pairs one tenant's in-memory index with its lock. dropped marks
// an entry retired by DropTenant; goroutines that were waiting on its lock
// must re-fetch a fresh entry instead of operating on it.
type tenantState struct {
	mu      sync.RWMutex
	index   *vectorindex.Index // nil until first loaded
	dropped bool
}

// Manager is the single entry point for obtaining and mutating tenant
// indexes.
type Manager struct {
	embed  embedder.Embedder
	seg    segment.Segmenter
	store  blob.Store
	docs   repository.DocumentRepository
	loader Loader
	logger *slog.Logger

	mu      sync.Mutex
	tenants map[string]*tenantState
}

// Option is a functional option for configuring Manager.
type Option func(*Manager)

// WithLoader sets the document content loader. Default is FileLoader.
func WithLoader(l Loader) Option {
	return func(m *Manager) { m.loader = l }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager over the given collaborators.
func New(
	embed embedder.Embedder,
	seg segment.Segmenter,
	store blob.Store,
	docs repository.DocumentRepository,
	opts ...Option,
) *Manager {
	m := &Manager{
		embed:   embed,
		seg:     seg,
		store:   store,
		docs:    docs,
		loader:  FileLoader{},
		logger:  slog.Default(),
		tenants: make(map[string]*tenantState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// tenant returns the tenant's state entry, creating it if absent. The entry
// itself is cheap; the index loads lazily under the tenant lock.
func (m *Manager) tenant(tenantID string) *tenantState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.tenants[tenantID]
	if !ok {
		ts = &tenantState{}
		m.tenants[tenantID] = ts
	}
	return ts
}

// lockTenant returns the tenant's state entry with its write lock held. An
// entry retired by a concurrent DropTenant is skipped, so at most one live
// entry exists per tenant.
func (m *Manager) lockTenant(tenantID string) *tenantState {
	for {
		ts := m.tenant(tenantID)
		ts.mu.Lock()
		if !ts.dropped {
			return ts
		}
		ts.mu.Unlock()
	}
}

// ensureLocked loads or creates the tenant's index. The caller must hold the
// tenant's write lock.
func (m *Manager) ensureLocked(ctx context.Context, ts *tenantState, tenantID string) error {
	if ts.index != nil {
		return nil
	}

	data, err := m.store.Get(ctx, tenantID)
	switch {
	case err == nil:
		ix, err := vectorindex.Decode(data)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		ts.index = ix
		m.logger.Info("loaded index", "tenant", tenantID, "chunks", ix.Len())
		return nil

	case errors.Is(err, blob.ErrNotExist):
		ix, err := m.createIndex(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := m.persist(ctx, ix); err != nil {
			return err
		}
		ts.index = ix
		m.logger.Info("created index", "tenant", tenantID)
		return nil

	default:
		return fmt.Errorf("loading index for tenant %s: %w", tenantID, err)
	}
}

// createIndex builds a fresh index holding only the placeholder chunk.
func (m *Manager) createIndex(ctx context.Context, tenantID string) (*vectorindex.Index, error) {
	vec, err := m.embed.Embed(ctx, vectorindex.PlaceholderText)
	if err != nil {
		return nil, fmt.Errorf("embedding placeholder for tenant %s: %w", tenantID, err)
	}
	return vectorindex.New(tenantID, vectorindex.Chunk{
		DocumentRef: vectorindex.PlaceholderRef,
		Text:        vectorindex.PlaceholderText,
		Vector:      vec,
	})
}

// persist writes the full index state to the tenant's storage slot.
func (m *Manager) persist(ctx context.Context, ix *vectorindex.Index) error {
	data, err := ix.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := m.store.Put(ctx, ix.TenantID(), data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// GetOrCreate loads the tenant's index from storage, creating and persisting
// a placeholder-only index when none exists. Idempotent.
func (m *Manager) GetOrCreate(ctx context.Context, tenantID string) (Stats, error) {
	ts := m.lockTenant(tenantID)
	defer ts.mu.Unlock()
	if err := m.ensureLocked(ctx, ts, tenantID); err != nil {
		return Stats{}, err
	}
	return Stats{
		TenantID:   tenantID,
		ChunkCount: ts.index.Len(),
		Documents:  ts.index.Documents(),
	}, nil
}

// Search runs a nearest-neighbor query against the tenant's index only.
// Cross-tenant content is structurally unreachable from here; this is the
// primary isolation mechanism.
func (m *Manager) Search(ctx context.Context, tenantID string, query []float32, k int) ([]vectorindex.SearchResult, error) {
	for {
		ts := m.tenant(tenantID)

		ts.mu.RLock()
		if ts.index != nil {
			results, err := ts.index.Search(query, k)
			ts.mu.RUnlock()
			return results, err
		}
		ts.mu.RUnlock()

		// Cold path: load (or recreate) under the write lock and search
		// there. The lock is never released between the load and the
		// search, so a concurrent DropTenant cannot nil the index out
		// from under us; a retired entry just sends us around again.
		ts.mu.Lock()
		if ts.dropped {
			ts.mu.Unlock()
			continue
		}
		if err := m.ensureLocked(ctx, ts, tenantID); err != nil {
			ts.mu.Unlock()
			return nil, err
		}
		results, err := ts.index.Search(query, k)
		ts.mu.Unlock()
		return results, err
	}
}

// AddDocument segments and embeds the document, appends the resulting chunks
// to the tenant's index, persists the new state, and records the document in
// the registry. A document that segments to zero chunks is logged and
// skipped: the upload succeeds with no chunk IDs. Nothing is committed when
// embedding fails.
func (m *Manager) AddDocument(ctx context.Context, tenantID, ref, name string) ([]uint64, error) {
	ts := m.lockTenant(tenantID)
	defer ts.mu.Unlock()

	if err := m.ensureLocked(ctx, ts, tenantID); err != nil {
		return nil, err
	}

	content, err := m.loader.Load(ctx, ref)
	if err != nil {
		return nil, &SourceUnavailableError{Ref: ref, Err: err}
	}

	segs := m.seg.Segment(string(content))
	if len(segs) == 0 {
		m.logger.Warn("document yielded no chunks, not indexed",
			"tenant", tenantID, "ref", ref)
		if err := m.register(ctx, tenantID, ref, name, 0); err != nil {
			return nil, err
		}
		return nil, nil
	}

	texts := make([]string, len(segs))
	for i, s := range segs {
		texts[i] = s.Text
	}
	vectors, err := m.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding document %s for tenant %s: %w", ref, tenantID, err)
	}

	chunks := make([]vectorindex.Chunk, len(segs))
	for i := range segs {
		chunks[i] = vectorindex.Chunk{
			DocumentRef: ref,
			Text:        segs[i].Text,
			Vector:      vectors[i],
		}
	}

	// Append onto a clone so the live index never holds unpersisted chunks.
	next := ts.index.Clone()
	ids, err := next.Append(chunks)
	if err != nil {
		return nil, fmt.Errorf("appending chunks for tenant %s: %w", tenantID, err)
	}

	// Register before persisting: rebuild enumerates the registry, so every
	// indexed document must have a record. The reverse gap (a record with
	// nothing indexed) is already a legal state, see zero-chunk uploads.
	hadChunks := len(ts.index.ChunksForDocument(ref)) > 0
	if err := m.register(ctx, tenantID, ref, name, len(ids)); err != nil {
		return nil, err
	}
	if err := m.persist(ctx, next); err != nil {
		// Roll the record back, unless earlier chunks for this ref are
		// still indexed and need the record to survive the next rebuild.
		if !hadChunks {
			if derr := m.docs.Delete(ctx, tenantID, ref); derr != nil && !errors.Is(derr, repository.ErrNotFound) {
				m.logger.Error("rolling back registry record failed",
					"tenant", tenantID, "ref", ref, "error", derr)
			}
		}
		return nil, err
	}
	ts.index = next

	m.logger.Info("document indexed",
		"tenant", tenantID, "ref", ref, "chunks", len(ids))
	return ids, nil
}

func (m *Manager) register(ctx context.Context, tenantID, ref, name string, chunkCount int) error {
	err := m.docs.Create(ctx, &repository.Document{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Ref:        ref,
		Name:       name,
		ChunkCount: chunkCount,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("registering document %s for tenant %s: %w", ref, tenantID, err)
	}
	return nil
}

// RemoveDocument removes a document's chunks from the tenant's index. The
// underlying index has no point delete, so removal rebuilds the index from
// the remaining source documents. Removing a document that is not indexed is
// a no-op, not an error.
func (m *Manager) RemoveDocument(ctx context.Context, tenantID, ref string) error {
	ts := m.lockTenant(tenantID)
	defer ts.mu.Unlock()

	if err := m.ensureLocked(ctx, ts, tenantID); err != nil {
		return err
	}

	indexed := len(ts.index.ChunksForDocument(ref)) > 0
	if !indexed {
		// May still have a registry record (zero-chunk upload).
		if err := m.docs.Delete(ctx, tenantID, ref); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("deleting registry record for %s: %w", ref, err)
		}
		m.logger.Info("document not in index, nothing to rebuild",
			"tenant", tenantID, "ref", ref)
		return nil
	}

	remaining, err := m.docs.ListByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("listing documents for tenant %s: %w", tenantID, err)
	}
	keep := remaining[:0]
	for _, d := range remaining {
		if d.Ref != ref {
			keep = append(keep, d)
		}
	}

	next, err := m.rebuild(ctx, tenantID, keep)
	if err != nil {
		return err
	}
	// Replace only after the new state is fully written; the old persisted
	// state stays readable up to this point.
	if err := m.persist(ctx, next); err != nil {
		return err
	}
	ts.index = next

	if err := m.docs.Delete(ctx, tenantID, ref); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("deleting registry record for %s: %w", ref, err)
	}

	m.logger.Info("document removed, index rebuilt",
		"tenant", tenantID, "ref", ref, "chunks", next.Len())
	return nil
}

// DropTenant discards the tenant's index, persisted state, and registry
// records. Used when an organization is deleted.
func (m *Manager) DropTenant(ctx context.Context, tenantID string) error {
	ts := m.lockTenant(tenantID)
	defer ts.mu.Unlock()

	if err := m.store.Delete(ctx, tenantID); err != nil {
		return fmt.Errorf("deleting index state for tenant %s: %w", tenantID, err)
	}
	if err := m.docs.DeleteByTenant(ctx, tenantID); err != nil {
		return fmt.Errorf("deleting registry records for tenant %s: %w", tenantID, err)
	}

	// Retire this entry. Goroutines still queued on its lock see dropped
	// and re-fetch, so they never resurrect state on a dead entry.
	ts.index = nil
	ts.dropped = true

	m.mu.Lock()
	delete(m.tenants, tenantID)
	m.mu.Unlock()

	m.logger.Info("tenant dropped", "tenant", tenantID)
	return nil
}
