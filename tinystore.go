// Package tinystore is an embedded, single-file key/value store indexed
// by a disk-resident B+ tree of fixed-size pages.
//
// A Connection owns one open database file. Put and Get operate on
// arbitrary byte-string keys and values; both are durable across
// process restarts, with the tree root and height recovered from the
// metadata page on reopen. Access is single-threaded: a caller
// that wants concurrency must serialize externally, and the pager's
// file lock keeps a second process out.
package tinystore

import (
	"github.com/tinystore-kv/tinystore/dbms/index/bptree"
	"github.com/tinystore-kv/tinystore/dbms/index/btpage"
	"github.com/tinystore-kv/tinystore/dbms/pager"
)

// Errors surfaced by Connection operations.
var (
	// ErrNotFound reports a key absent on Get.
	ErrNotFound = bptree.ErrNotFound

	// ErrValueTooLarge reports an entry that cannot fit in one page.
	ErrValueTooLarge = bptree.ErrValueTooLarge

	// ErrBadKey reports an empty key.
	ErrBadKey = bptree.ErrBadKey

	// ErrCorruptPage reports a page that failed validation on load.
	ErrCorruptPage = btpage.ErrCorrupt
)

// defaultCachePages is the number of pages the pager keeps in memory.
const defaultCachePages = 128

// Connection is a handle to one open database file.
type Connection struct {
	pg   *pager.Pager
	tree *bptree.Tree
}

// Open opens the database at path, creating and initializing it when it
// does not exist. An existing file must start with valid metadata.
func Open(path string) (*Connection, error) {
	pg, err := pager.Open(path, defaultCachePages)
	if err != nil {
		return nil, err
	}

	if pg.Size() == 0 {
		// Fresh file: page 0 carries the metadata of an empty tree.
		c := &Connection{pg: pg, tree: bptree.New(pg, 0, 0)}
		if err := c.writeMeta(); err != nil {
			pg.Close()
			return nil, err
		}
		return c, nil
	}

	p, err := pg.GetPage(0)
	if err != nil {
		pg.Close()
		return nil, err
	}
	meta := decodeMeta(p)
	if meta.magic != metaMagic {
		pg.Close()
		return nil, ErrBadMagic
	}
	return &Connection{pg: pg, tree: bptree.New(pg, meta.root, meta.height)}, nil
}

// Put inserts (key, value) and commits the updated metadata.
func (c *Connection) Put(key, value []byte) error {
	if err := c.tree.Put(key, value); err != nil {
		return err
	}
	return c.writeMeta()
}

// Get returns the value stored under key, or ErrNotFound.
func (c *Connection) Get(key []byte) ([]byte, error) {
	return c.tree.Get(key)
}

// Close flushes the metadata and releases the database file.
func (c *Connection) Close() error {
	err := c.writeMeta()
	if cerr := c.pg.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Connection) writeMeta() error {
	var p pager.Page
	meta := metaData{
		magic:  metaMagic,
		size:   c.pg.Size(),
		root:   c.tree.Root(),
		height: c.tree.Height(),
	}
	if meta.size == 0 {
		meta.size = pager.PageSize // page 0 itself, about to be written
	}
	meta.encode(&p)
	return c.pg.CommitPage(0, &p)
}
