// Package blob provides the persistence layer for serialized index state:
// a key-value store keyed by tenant ID, holding one opaque blob per tenant
// with atomic replace semantics. Readers of the previous blob never observe
// a partially written replacement.
package blob

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when no blob has been stored for the tenant.
var ErrNotExist = errors.New("blob: not found")

// Store persists one blob per tenant. Distinct tenants never share a key.
type Store interface {
	// Get returns the blob stored for the tenant, or ErrNotExist.
	Get(ctx context.Context, tenantID string) ([]byte, error)

	// Put atomically replaces the tenant's blob.
	Put(ctx context.Context, tenantID string, data []byte) error

	// Delete removes the tenant's blob. Deleting an absent blob is a no-op.
	Delete(ctx context.Context, tenantID string) error

	// Close releases underlying resources.
	Close() error
}
