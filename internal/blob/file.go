package blob

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one file per tenant under a root directory. Replacement is
// write-temp-then-rename, so a reader of the previous file never sees a
// partial write.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed and returns a store over it.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// path maps a tenant to its file. Tenant IDs are hex-encoded so arbitrary
// identifiers cannot escape the root or collide case-insensitively.
func (s *FileStore) path(tenantID string) string {
	return filepath.Join(s.root, "organization_"+hex.EncodeToString([]byte(tenantID))+".idx")
}

// Get returns the blob stored for the tenant, or ErrNotExist.
func (s *FileStore) Get(ctx context.Context, tenantID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(tenantID))
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob for tenant %s: %w", tenantID, err)
	}
	return data, nil
}

// Put atomically replaces the tenant's blob via a temp file and rename.
func (s *FileStore) Put(ctx context.Context, tenantID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	final := s.path(tenantID)
	tmp, err := os.CreateTemp(s.root, filepath.Base(final)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp blob: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swapping blob for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Delete removes the tenant's blob if present.
func (s *FileStore) Delete(ctx context.Context, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(tenantID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
