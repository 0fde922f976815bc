// Package pager manages a file of fixed-size pages addressed by page id.
//
// Every page is PageSize bytes and lives at byte offset id*PageSize in
// the backing file. All reads and writes are positional; there is no
// shared seek cursor. An LRU cache fronts reads and is write-through on
// CommitPage, so the file always holds the last committed image of
// every page.
package pager

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	PageSize = 4096 // 4 KB — matches OS page size
)

// PageID addresses one page in the backing file. Id 0 is by convention
// the metadata page and is never handed out by NewPage on a freshly
// initialized database.
type PageID uint32

// Page is a raw 4 KB block read from or written to disk.
type Page [PageSize]byte

// ErrBadFileSize reports a database file whose length is not a whole
// number of pages.
var ErrBadFileSize = errors.New("pager: file size is not a multiple of page size")

// Pager reads and writes whole pages against a single open file and
// caches recently used ones.
type Pager struct {
	file   *os.File
	cache  *lruCache
	maxOff int64 // high-water mark of bytes written, reported by Size
}

// Open opens (or creates) a pager backed by the given file and takes an
// exclusive advisory lock on it. cacheSize is the number of pages to
// hold in the LRU cache.
func Open(path string, cacheSize int) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager open: %w", err)
	}
	if err := lockExclusive(f); err != nil {
		f.Close()
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager open: %w", err)
	}
	if info.Size()%PageSize != 0 {
		f.Close()
		return nil, ErrBadFileSize
	}

	return &Pager{
		file:   f,
		cache:  newLRUCache(cacheSize),
		maxOff: info.Size(),
	}, nil
}

// NewPage extends the file by one zero-initialized page and returns its
// id. The file length must be a whole number of pages.
func (p *Pager) NewPage() (PageID, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("pager: new page: %w", err)
	}
	if info.Size()%PageSize != 0 {
		return 0, ErrBadFileSize
	}
	id := PageID(info.Size() / PageSize)

	var blank Page
	if err := p.writePageToDisk(id, &blank); err != nil {
		return 0, err
	}
	p.cache.put(id, &blank)
	return id, nil
}

// GetPage returns a fresh copy of the page with the given id, from
// cache or disk. Mutations of the returned buffer are not durable until
// CommitPage is called for it.
func (p *Pager) GetPage(id PageID) (*Page, error) {
	if cached := p.cache.get(id); cached != nil {
		cp := *cached
		return &cp, nil
	}
	pg, err := p.readPageFromDisk(id)
	if err != nil {
		return nil, err
	}
	cached := *pg
	p.cache.put(id, &cached)
	return pg, nil
}

// CommitPage writes the page back to its offset in the file and updates
// the cache.
func (p *Pager) CommitPage(id PageID, pg *Page) error {
	if err := p.writePageToDisk(id, pg); err != nil {
		return err
	}
	cp := *pg
	p.cache.put(id, &cp)
	return nil
}

// Size returns the number of bytes covered by committed pages: the
// highest written offset plus one page.
func (p *Pager) Size() uint64 {
	return uint64(p.maxOff)
}

// Close releases the file lock and closes the underlying file.
func (p *Pager) Close() error {
	unlockFile(p.file)
	return p.file.Close()
}

// --- internal helpers ---

func (p *Pager) offset(id PageID) int64 {
	return int64(id) * PageSize
}

func (p *Pager) readPageFromDisk(id PageID) (*Page, error) {
	pg := new(Page)
	n, err := p.file.ReadAt(pg[:], p.offset(id))
	if err == io.EOF && n == PageSize {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", id, err)
	}
	return pg, nil
}

func (p *Pager) writePageToDisk(id PageID, pg *Page) error {
	if _, err := p.file.WriteAt(pg[:], p.offset(id)); err != nil {
		return fmt.Errorf("pager: write page %d: %w", id, err)
	}
	if end := p.offset(id) + PageSize; end > p.maxOff {
		p.maxOff = end
	}
	return nil
}

// ─── LRU Cache ────────────────────────────────────────────────────────────────

type lruEntry struct {
	id   PageID
	page *Page
	prev *lruEntry
	next *lruEntry
}

type lruCache struct {
	cap   int
	items map[PageID]*lruEntry
	head  *lruEntry // most recent
	tail  *lruEntry // least recent
}

func newLRUCache(cap int) *lruCache {
	return &lruCache{
		cap:   cap,
		items: make(map[PageID]*lruEntry, cap),
	}
}

func (c *lruCache) get(id PageID) *Page {
	e, ok := c.items[id]
	if !ok {
		return nil
	}
	c.moveToFront(e)
	return e.page
}

func (c *lruCache) put(id PageID, pg *Page) {
	if c.cap <= 0 {
		return
	}
	if e, ok := c.items[id]; ok {
		e.page = pg
		c.moveToFront(e)
		return
	}
	e := &lruEntry{id: id, page: pg}
	c.items[id] = e
	c.pushFront(e)
	if len(c.items) > c.cap {
		c.evict()
	}
}

func (c *lruCache) pushFront(e *lruEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) moveToFront(e *lruEntry) {
	if c.head == e {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.tail == e {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
}

func (c *lruCache) evict() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.id)
	if c.tail.prev != nil {
		c.tail.prev.next = nil
	}
	c.tail = c.tail.prev
	if c.tail == nil {
		c.head = nil
	}
}
