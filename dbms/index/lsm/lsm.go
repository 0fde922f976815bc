// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind
// the common Store interface so it can be benchmarked alongside the
// embedded B+ tree.
package lsm

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/tinystore-kv/tinystore/dbms/index"
)

var _ index.Store = (*LSM)(nil)

type LSM struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		// Use a 16 MB memtable
		MemTableSize: 16 << 20,
		// Keep spare memtables so one can be flushed while another is active.
		MemTableStopWritesThreshold: 4,
		// L0 compaction trigger.
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open: %w", err)
	}
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Put inserts or updates the value for key.
func (l *LSM) Put(key, value []byte) error {
	return l.db.Set(key, value, pebble.NoSync)
}

// Get retrieves the value for key. Returns nil, nil if not found.
func (l *LSM) Get(key []byte) ([]byte, error) {
	val, closer, err := l.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lsm: get: %w", err)
	}
	// val is only valid until closer.Close(), so we copy it.
	result := make([]byte, len(val))
	copy(result, val)
	closer.Close()
	return result, nil
}
