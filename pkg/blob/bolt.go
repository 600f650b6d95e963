package blob

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// Bolt stores the object as one key in a BoltDB bucket
type Bolt struct {
	db     *bbolt.DB
	bucket []byte
	key    []byte
}

// OpenBolt opens (or creates) the BoltDB file at path
func OpenBolt(path, bucket, key string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	return &Bolt{db: db, bucket: []byte(bucket), key: []byte(key)}, nil
}

// Close releases the database file lock
func (b *Bolt) Close() error {
	return b.db.Close()
}

func (b *Bolt) ReadVersion(ctx context.Context) ([]byte, Version, error) {
	data, err := b.Read(ctx)
	if err != nil {
		return nil, "", err
	}
	return data, versionOf(data), nil
}

// WriteIf compares and stores inside one update transaction
func (b *Bolt) WriteIf(ctx context.Context, data []byte, v Version) (Version, error) {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(b.bucket)
		if err != nil {
			return err
		}

		var cur Version
		if existing := bucket.Get(b.key); existing != nil {
			cur = versionOf(existing)
		}
		if cur != v {
			return ErrConflict
		}
		return bucket.Put(b.key, data)
	})
	if errors.Is(err, ErrConflict) {
		return "", ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("failed to store ledger in bolt: %w", err)
	}
	return versionOf(data), nil
}

func (b *Bolt) Read(ctx context.Context) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return ErrNotFound
		}

		v := bucket.Get(b.key)
		if v == nil {
			return ErrNotFound
		}

		// v is only valid for the life of the transaction
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bolt) Write(ctx context.Context, data []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(b.bucket)
		if err != nil {
			return err
		}
		return bucket.Put(b.key, data)
	})
	if err != nil {
		return fmt.Errorf("failed to store ledger in bolt: %w", err)
	}
	return nil
}
