package repository

import (
	"context"
	"sync"
)

// MemoryRepository is an in-process DocumentRepository. It backs tests and
// single-node deployments without a database.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string][]*Document // tenant -> documents in upload order
}

// NewMemoryRepository creates an empty in-memory registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string][]*Document)}
}

// Create records a document, replacing any existing record with the same ref.
func (r *MemoryRepository) Create(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d := *doc
	list := r.docs[doc.TenantID]
	for i, existing := range list {
		if existing.Ref == doc.Ref {
			list[i] = &d
			return nil
		}
	}
	r.docs[doc.TenantID] = append(list, &d)
	return nil
}

// GetByRef returns the tenant's document with the given ref, or ErrNotFound.
func (r *MemoryRepository) GetByRef(ctx context.Context, tenantID, ref string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs[tenantID] {
		if doc.Ref == ref {
			d := *doc
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

// ListByTenant returns the tenant's documents in upload order.
func (r *MemoryRepository) ListByTenant(ctx context.Context, tenantID string) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.docs[tenantID]
	out := make([]*Document, len(list))
	for i, doc := range list {
		d := *doc
		out[i] = &d
	}
	return out, nil
}

// Delete removes the tenant's document with the given ref.
func (r *MemoryRepository) Delete(ctx context.Context, tenantID, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.docs[tenantID]
	for i, doc := range list {
		if doc.Ref == ref {
			r.docs[tenantID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// DeleteByTenant removes all of the tenant's records.
func (r *MemoryRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, tenantID)
	return nil
}

var _ DocumentRepository = (*MemoryRepository)(nil)
