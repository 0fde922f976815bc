// Package bptree implements a disk-resident B+ tree of slotted pages.
//
// Leaf items hold the caller's value; internal items hold a 4-byte
// big-endian child page id, keyed by the largest key reachable through
// that child. The last slot of every internal page is an empty-key
// sentinel pointing at the rightmost child, so a descent never runs off
// the end of the separator list.
//
// Inserts descend recursively and hand overflow back up the stack: a
// frame that splits its page returns the promoted separator and the
// in-memory right half, and the parent allocates the right page,
// repoints its existing entry for the child at that page and files the
// promoted separator for the shrunken child, splitting itself in turn
// if that entry does not fit. A root split grows the tree by one level.
package bptree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tinystore-kv/tinystore/dbms/index/btpage"
	"github.com/tinystore-kv/tinystore/dbms/pager"
)

var (
	// ErrNotFound reports a key absent from the tree.
	ErrNotFound = errors.New("bptree: key not found")

	// ErrValueTooLarge reports an entry that cannot fit in one page.
	ErrValueTooLarge = errors.New("bptree: entry does not fit in one page")

	// ErrBadKey reports an empty key, which is reserved for the
	// rightmost-child sentinel of internal pages.
	ErrBadKey = errors.New("bptree: empty keys are reserved")
)

// Tree is a B+ tree rooted at a page of the given pager. A zero root
// with zero height is the empty tree; height 1 means the root is a
// leaf.
type Tree struct {
	pg     *pager.Pager
	root   pager.PageID
	height uint16
}

// New attaches a tree to its pager with the root and height recovered
// from (or about to be mirrored into) the database metadata.
func New(pg *pager.Pager, root pager.PageID, height uint16) *Tree {
	return &Tree{pg: pg, root: root, height: height}
}

// Root returns the current root page id.
func (t *Tree) Root() pager.PageID { return t.root }

// Height returns the number of edges on a root-to-leaf path.
func (t *Tree) Height() uint16 { return t.height }

// Get returns the value stored under key, or ErrNotFound.
func (t *Tree) Get(key []byte) ([]byte, error) {
	if t.height == 0 {
		return nil, ErrNotFound
	}
	pid := t.root
	for h := t.height; h > 1; h-- {
		p, err := t.load(pid, btpage.TypeInternal)
		if err != nil {
			return nil, err
		}
		ip := btpage.FindPlace(p, key)
		pid, err = childAt(p, ip)
		if err != nil {
			return nil, err
		}
	}
	leaf, err := t.load(pid, btpage.TypeLeaf)
	if err != nil {
		return nil, err
	}
	for i := 0; i < btpage.NumItems(leaf); i++ {
		k, v := btpage.Item(leaf, i)
		if bytes.Equal(k, key) {
			return v, nil
		}
	}
	return nil, ErrNotFound
}

// Put inserts (key, value). Duplicate keys are kept: the new entry
// lands adjacent to and before the stored one, so Get returns the most
// recently put value. The entry (with its 4-byte length header and
// slot) must fit in one page's free area.
func (t *Tree) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrBadKey
	}
	if len(key) > 0xFFFF || len(value) > 0xFFFF || btpage.ItemSize(key, value) > btpage.MaxItemSize {
		return ErrValueTooLarge
	}

	if t.height == 0 {
		pid, err := t.pg.NewPage()
		if err != nil {
			return err
		}
		var p pager.Page
		btpage.Init(&p, btpage.TypeLeaf)
		btpage.InsertItem(&p, 0, key, value)
		if err := t.pg.CommitPage(pid, &p); err != nil {
			return err
		}
		t.root = pid
		t.height = 1
		return nil
	}

	sk, right, err := t.insert(t.root, key, value, int(t.height)-1)
	if err != nil {
		return err
	}
	if right == nil {
		return nil
	}

	// Root split: file the right half, then raise a new internal root
	// over the two halves.
	rid, err := t.pg.NewPage()
	if err != nil {
		return err
	}
	if err := t.pg.CommitPage(rid, right); err != nil {
		return err
	}
	newRoot, err := t.pg.NewPage()
	if err != nil {
		return err
	}
	var p pager.Page
	btpage.Init(&p, btpage.TypeInternal)
	btpage.InsertItem(&p, 0, sk, childValue(t.root))
	btpage.InsertItem(&p, 1, nil, childValue(rid))
	if err := t.pg.CommitPage(newRoot, &p); err != nil {
		return err
	}
	t.root = newRoot
	t.height++
	return nil
}

// insert descends to height h (0 = leaf) below pid. A nil right page in
// the result means the subtree absorbed the entry; otherwise the
// returned separator and unwritten right half must be filed by the
// caller.
func (t *Tree) insert(pid pager.PageID, key, value []byte, h int) ([]byte, *pager.Page, error) {
	if h == 0 {
		p, err := t.load(pid, btpage.TypeLeaf)
		if err != nil {
			return nil, nil, err
		}
		ip := btpage.FindPlace(p, key)
		return t.tryInsert(pid, p, ip, key, value)
	}

	p, err := t.load(pid, btpage.TypeInternal)
	if err != nil {
		return nil, nil, err
	}
	cp := btpage.FindPlace(p, key)
	cid, err := childAt(p, cp)
	if err != nil {
		return nil, nil, err
	}
	csk, cright, err := t.insert(cid, key, value, h-1)
	if err != nil || cright == nil {
		return nil, nil, err
	}

	rid, err := t.pg.NewPage()
	if err != nil {
		return nil, nil, err
	}
	if err := t.pg.CommitPage(rid, cright); err != nil {
		return nil, nil, err
	}

	// Swap the separator at cp: its key now bounds the right half of
	// the split child, while the surviving left half (still at cid)
	// is bounded by the child's promoted key. Repointing the existing
	// entry at rid keeps its size, so it always fits; the promoted
	// entry is then filed before it and may split this page.
	kOld, childVal := btpage.RemoveItem(p, cp)
	btpage.InsertItem(p, cp, kOld, childValue(rid))
	return t.tryInsert(pid, p, cp, csk, childVal)
}

// tryInsert places (key, value) at slot ip of the loaded page and
// commits it. On overflow the page splits: the left half is committed
// in place and the promoted separator plus the yet-unwritten right half
// are returned for the caller to file.
func (t *Tree) tryInsert(pid pager.PageID, p *pager.Page, ip int, key, value []byte) ([]byte, *pager.Page, error) {
	if btpage.InsertItem(p, ip, key, value) {
		return nil, nil, t.pg.CommitPage(pid, p)
	}

	sp, right := btpage.Split(p)
	internal := !btpage.IsLeaf(p)

	// Oversized items can leave the left half empty. With a single
	// resident item the two entries simply get one page each; with two,
	// pull the lowest back so both halves stay non-empty and rejoin the
	// regular flow.
	if sp < 0 {
		if !internal && btpage.NumItems(right) == 1 {
			var sk []byte
			if oldK, _ := btpage.Item(right, 0); bytes.Compare(key, oldK) <= 0 {
				if !btpage.InsertItem(p, 0, key, value) {
					return nil, nil, fmt.Errorf("%w: post-split insert overflow in page %d", btpage.ErrCorrupt, pid)
				}
				sk = key
			} else {
				k, v := btpage.RemoveItem(right, 0)
				btpage.InsertItem(p, 0, k, v)
				if !btpage.InsertItem(right, 0, key, value) {
					return nil, nil, fmt.Errorf("%w: post-split insert overflow in page %d", btpage.ErrCorrupt, pid)
				}
				sk = k
			}
			if err := t.pg.CommitPage(pid, p); err != nil {
				return nil, nil, err
			}
			return sk, right, nil
		}
		k, v := btpage.RemoveItem(right, 0)
		btpage.InsertItem(p, 0, k, v)
		sp = 0
	}

	var sk []byte
	if ip == sp+1 {
		// The entry falls exactly between the halves and becomes the
		// separator itself. A leaf keeps its copy of the separator
		// entry (copy-up); an internal page parks the promoted child
		// pointer behind a fresh rightmost sentinel (move-up).
		sk = key
		if internal {
			if !btpage.InsertItem(p, btpage.NumItems(p), nil, value) {
				return nil, nil, fmt.Errorf("%w: separator re-seat overflow in page %d", btpage.ErrCorrupt, pid)
			}
		} else if !btpage.InsertItem(p, btpage.NumItems(p), key, value) {
			// No room beside the left half: the entry opens the right
			// page instead and the left half's own maximum separates
			// the halves.
			if !btpage.InsertItem(right, 0, key, value) {
				return nil, nil, fmt.Errorf("%w: post-split insert overflow in page %d", btpage.ErrCorrupt, pid)
			}
			sk, _ = btpage.Item(p, btpage.NumItems(p)-1)
		}
	} else {
		if internal {
			var sv []byte
			sk, sv = btpage.RemoveItem(p, sp)
			if !btpage.InsertItem(p, btpage.NumItems(p), nil, sv) {
				return nil, nil, fmt.Errorf("%w: separator re-seat overflow in page %d", btpage.ErrCorrupt, pid)
			}
		} else {
			sk, _ = btpage.Item(p, sp)
		}

		// File the entry in whichever half owns its key range; a key
		// equal to the separator stays on the left. An empty key
		// compares as +inf, so it goes to the very end of the right
		// half.
		target, pos := p, 0
		if len(key) == 0 {
			target, pos = right, btpage.NumItems(right)
		} else {
			if bytes.Compare(key, sk) > 0 {
				target = right
			}
			pos = btpage.FindPlace(target, key)
		}
		if !btpage.InsertItem(target, pos, key, value) {
			return nil, nil, fmt.Errorf("%w: post-split insert overflow in page %d", btpage.ErrCorrupt, pid)
		}
	}

	if err := t.pg.CommitPage(pid, p); err != nil {
		return nil, nil, err
	}
	return sk, right, nil
}

// load fetches a page and validates its header against the node type
// the descent expects there.
func (t *Tree) load(pid pager.PageID, want byte) (*pager.Page, error) {
	p, err := t.pg.GetPage(pid)
	if err != nil {
		return nil, err
	}
	if err := btpage.Validate(p); err != nil {
		return nil, fmt.Errorf("page %d: %w", pid, err)
	}
	if btpage.Type(p) != want {
		return nil, fmt.Errorf("%w: page %d has type %d, want %d", btpage.ErrCorrupt, pid, btpage.Type(p), want)
	}
	return p, nil
}

func childAt(p *pager.Page, i int) (pager.PageID, error) {
	_, v := btpage.Item(p, i)
	if len(v) != 4 {
		return 0, fmt.Errorf("%w: child pointer has %d bytes", btpage.ErrCorrupt, len(v))
	}
	return pager.PageID(binary.BigEndian.Uint32(v)), nil
}

func childValue(id pager.PageID) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return b[:]
}
