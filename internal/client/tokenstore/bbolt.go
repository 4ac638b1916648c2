package tokenstore

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("credentials")

// BoltBackend stores slots as keys of a single BBolt bucket.
type BoltBackend struct {
	db *bbolt.DB
}

// NewBoltBackend wraps an open BBolt database.
func NewBoltBackend(db *bbolt.DB) *BoltBackend {
	return &BoltBackend{db: db}
}

// OpenBolt opens the BBolt file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBoltBackend(db), nil
}

func (b *BoltBackend) Load(_ context.Context) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			// bbolt memory is only valid inside the transaction.
			result[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BoltBackend) Save(_ context.Context, values map[string][]byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		for slot, value := range values {
			if err := bucket.Put([]byte(slot), value); err != nil {
				return fmt.Errorf("put %s: %w", slot, err)
			}
		}
		return nil
	})
}

func (b *BoltBackend) Remove(_ context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(boltBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(boltBucket)
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
