// Package memindex is a sorted in-memory index: the zero-I/O floor for
// the engine comparison.
package memindex

import (
	"bytes"
	"sort"

	"github.com/tinystore-kv/tinystore/dbms/index"
)

var _ index.Store = (*MemIndex)(nil)

type entry struct {
	key []byte
	val []byte
}

// MemIndex keeps entries in a slice sorted by key and looks them up
// with binary search.
type MemIndex struct {
	entries []entry
}

func New() *MemIndex {
	return &MemIndex{}
}

// Put inserts or updates the value for key.
func (m *MemIndex) Put(key, value []byte) error {
	i := m.search(key)
	if i < len(m.entries) && bytes.Equal(m.entries[i].key, key) {
		m.entries[i].val = append([]byte(nil), value...)
		return nil
	}
	m.entries = append(m.entries, entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry{
		key: append([]byte(nil), key...),
		val: append([]byte(nil), value...),
	}
	return nil
}

// Get retrieves the value for key. Returns nil, nil if not found.
func (m *MemIndex) Get(key []byte) ([]byte, error) {
	i := m.search(key)
	if i < len(m.entries) && bytes.Equal(m.entries[i].key, key) {
		return m.entries[i].val, nil
	}
	return nil, nil
}

func (m *MemIndex) Close() error { return nil }

func (m *MemIndex) search(key []byte) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return bytes.Compare(m.entries[i].key, key) >= 0
	})
}
