// Package tiny exposes the embedded tinystore engine behind the common
// Store interface used by the evaluation harness.
package tiny

import (
	"errors"

	"github.com/tinystore-kv/tinystore"
	"github.com/tinystore-kv/tinystore/dbms/index"
)

var _ index.Store = (*Tiny)(nil)

type Tiny struct {
	conn *tinystore.Connection
}

// Open opens (or creates) a tinystore database file at path.
func Open(path string) (*Tiny, error) {
	conn, err := tinystore.Open(path)
	if err != nil {
		return nil, err
	}
	return &Tiny{conn: conn}, nil
}

// Put inserts or updates the value for key.
func (t *Tiny) Put(key, value []byte) error {
	return t.conn.Put(key, value)
}

// Get retrieves the value for key. Returns nil, nil if not found.
func (t *Tiny) Get(key []byte) ([]byte, error) {
	v, err := t.conn.Get(key)
	if errors.Is(err, tinystore.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (t *Tiny) Close() error {
	return t.conn.Close()
}
