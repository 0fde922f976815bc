// Package bolt wraps bbolt (etcd's mmap'd B+ tree store) behind the
// common Store interface so it can be benchmarked alongside the
// embedded B+ tree.
package bolt

import (
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/tinystore-kv/tinystore/dbms/index"
)

var _ index.Store = (*Bolt)(nil)

var bucket = []byte("kv")

type Bolt struct {
	db *bbolt.DB
}

// Open opens (or creates) a bbolt database file at path.
func Open(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: time.Second,
		// The harness measures engine work, not fsync latency; Pebble
		// runs with NoSync, so bbolt gets the same treatment.
		NoSync: true,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: open: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Put inserts or updates the value for key.
func (b *Bolt) Put(key, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

// Get retrieves the value for key. Returns nil, nil if not found.
func (b *Bolt) Get(key []byte) ([]byte, error) {
	var result []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		// The slice is only valid inside the transaction, so we copy it.
		if v := tx.Bucket(bucket).Get(key); v != nil {
			result = make([]byte, len(v))
			copy(result, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get: %w", err)
	}
	return result, nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
