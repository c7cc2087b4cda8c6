package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dayaobuxiao/EchoSage/internal/repository"
)

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create records a document. An existing (tenant, ref) record is replaced.
func (r *DocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	query := `
		INSERT INTO source_documents (id, tenant_id, ref, name, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, ref)
		DO UPDATE SET name = EXCLUDED.name, chunk_count = EXCLUDED.chunk_count
	`
	_, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.TenantID, doc.Ref, doc.Name, doc.ChunkCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByRef returns the tenant's document with the given ref, or ErrNotFound.
func (r *DocumentRepo) GetByRef(ctx context.Context, tenantID, ref string) (*repository.Document, error) {
	query := `
		SELECT id, tenant_id, ref, name, chunk_count, created_at
		FROM source_documents
		WHERE tenant_id = $1 AND ref = $2
	`
	var doc repository.Document
	err := r.db.Pool.QueryRow(ctx, query, tenantID, ref).Scan(
		&doc.ID, &doc.TenantID, &doc.Ref, &doc.Name, &doc.ChunkCount, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// ListByTenant returns the tenant's documents in upload order.
func (r *DocumentRepo) ListByTenant(ctx context.Context, tenantID string) ([]*repository.Document, error) {
	query := `
		SELECT id, tenant_id, ref, name, chunk_count, created_at
		FROM source_documents
		WHERE tenant_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		var doc repository.Document
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Ref, &doc.Name,
			&doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete removes the tenant's document with the given ref.
func (r *DocumentRepo) Delete(ctx context.Context, tenantID, ref string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM source_documents WHERE tenant_id = $1 AND ref = $2`, tenantID, ref)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByTenant removes all of the tenant's records.
func (r *DocumentRepo) DeleteByTenant(ctx context.Context, tenantID string) error {
	if _, err := r.db.Pool.Exec(ctx,
		`DELETE FROM source_documents WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant documents: %w", err)
	}
	return nil
}

var _ repository.DocumentRepository = (*DocumentRepo)(nil)
