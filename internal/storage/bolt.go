package storage

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketKV = []byte("kv")

// BoltKV stores blobs in a single bbolt bucket. Writes are transactional —
// a crash mid-write cannot corrupt previously committed data.
type BoltKV struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt database at the given path.
func OpenBolt(path string) (*BoltKV, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt bucket: %w", err)
	}
	return &BoltKV{db: db}, nil
}

func (b *BoltKV) Close() error {
	return b.db.Close()
}

func (b *BoltKV) Get(_ context.Context, key string) (string, bool, error) {
	var value string
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketKV).Get([]byte(key))
		if v != nil {
			value = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("bbolt get %q: %w", key, err)
	}
	return value, ok, nil
}

func (b *BoltKV) Set(_ context.Context, key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bbolt set %q: %w", key, err)
	}
	return nil
}

func (b *BoltKV) Remove(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bbolt remove %q: %w", key, err)
	}
	return nil
}
