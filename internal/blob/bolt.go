package blob

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var indexBucket = []byte("indexes")

// BoltStore keeps all tenant blobs in a single bbolt file. Each Put runs in
// one write transaction, which gives the atomic-replace guarantee.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if necessary) the bolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening blob store %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the blob stored for the tenant, or ErrNotExist.
func (s *BoltStore) Get(ctx context.Context, tenantID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(indexBucket).Get([]byte(tenantID))
		if v == nil {
			return ErrNotExist
		}
		// The value is only valid inside the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put atomically replaces the tenant's blob.
func (s *BoltStore) Put(ctx context.Context, tenantID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte(tenantID), data)
	})
}

// Delete removes the tenant's blob if present.
func (s *BoltStore) Delete(ctx context.Context, tenantID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(indexBucket).Delete([]byte(tenantID))
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
