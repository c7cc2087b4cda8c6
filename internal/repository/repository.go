// Package repository defines the source-document registry: the persistent
// record of which documents each tenant has uploaded. The rebuild workflow
// enumerates this registry to reconstruct an index without a removed
// document, so only document references are kept here, never content.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Document records one uploaded source document.
type Document struct {
	ID         uuid.UUID
	TenantID   string
	Ref        string // stable path/handle used to re-load the content
	Name       string // original filename, for display
	ChunkCount int    // chunks indexed at upload time; 0 for empty documents
	CreatedAt  time.Time
}

// DocumentRepository is the data access contract for the registry.
type DocumentRepository interface {
	// Create records a document. (tenant, ref) is unique per tenant.
	Create(ctx context.Context, doc *Document) error

	// GetByRef returns the tenant's document with the given ref, or ErrNotFound.
	GetByRef(ctx context.Context, tenantID, ref string) (*Document, error)

	// ListByTenant returns the tenant's documents in upload order.
	ListByTenant(ctx context.Context, tenantID string) ([]*Document, error)

	// Delete removes the tenant's document with the given ref.
	// Returns ErrNotFound when no such record exists.
	Delete(ctx context.Context, tenantID, ref string) error

	// DeleteByTenant removes all of the tenant's records.
	DeleteByTenant(ctx context.Context, tenantID string) error
}
