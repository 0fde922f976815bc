// Package btpage provides the on-disk slotted page layout used by the
// B+ tree: a packed codec for one 4096-byte page.
//
// Page layout:
//
//	[0-1]   2 bytes  numItems
//	[2-3]   2 bytes  page magic ("PG")
//	[4]     1 byte   page type (TypeInternal / TypeLeaf)
//	[5]     1 byte   reserved
//	[6+]    slot-offset array — one big-endian uint16 per item, grows forward
//	        ...free space...
//	        item heap, grows backward from the end of the page
//
// Item layout at its slot offset:
//
//	[0-1]   uint16  key length
//	[2-3]   uint16  value length
//	[4+]    key bytes, then value bytes
//
// All integers are big-endian. Slots are kept in non-decreasing key
// order and slot offsets strictly decrease with the slot index, so the
// heap never has holes: inserts and removals shift the neighbours.
//
// Internal pages store a child page id as the item value and keep one
// empty-key sentinel in their last slot whose value is the rightmost
// child; the sentinel compares greater than every key.
package btpage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tinystore-kv/tinystore/dbms/pager"
)

const (
	TypeInternal = byte(0)
	TypeLeaf     = byte(1)

	HeaderSize = 6

	offNumItems = 0
	offMagic    = 2
	offType     = 4

	// Magic marks an initialized tree page ("PG").
	Magic = uint16(0x5047)

	// MaxItemSize is the largest item (header + key + value) that fits,
	// with its slot, in an empty page's free area.
	MaxItemSize = pager.PageSize - HeaderSize - 2
)

// ErrCorrupt reports a page whose header or slot array fails validation.
var ErrCorrupt = errors.New("btpage: corrupt page")

// Init formats p as an empty page of the given type.
func Init(p *pager.Page, pt byte) {
	for i := range p {
		p[i] = 0
	}
	binary.BigEndian.PutUint16(p[offMagic:], Magic)
	p[offType] = pt
}

// Validate checks the header magic, type tag and slot array of a page
// loaded from disk.
func Validate(p *pager.Page) error {
	if binary.BigEndian.Uint16(p[offMagic:offMagic+2]) != Magic {
		return fmt.Errorf("%w: bad magic %#04x", ErrCorrupt, binary.BigEndian.Uint16(p[offMagic:offMagic+2]))
	}
	if t := p[offType]; t != TypeInternal && t != TypeLeaf {
		return fmt.Errorf("%w: unknown page type %d", ErrCorrupt, t)
	}
	n := NumItems(p)
	freeStart := HeaderSize + 2*n
	if freeStart > pager.PageSize {
		return fmt.Errorf("%w: %d items overflow the slot array", ErrCorrupt, n)
	}
	prev := pager.PageSize + 1
	for i := 0; i < n; i++ {
		offs := Offs(p, i)
		if offs < freeStart || offs+4 > pager.PageSize {
			return fmt.Errorf("%w: slot %d offset %d out of range", ErrCorrupt, i, offs)
		}
		kl := int(binary.BigEndian.Uint16(p[offs : offs+2]))
		vl := int(binary.BigEndian.Uint16(p[offs+2 : offs+4]))
		if offs+4+kl+vl > pager.PageSize {
			return fmt.Errorf("%w: slot %d item exceeds page", ErrCorrupt, i)
		}
		if offs >= prev {
			return fmt.Errorf("%w: slot %d offset not decreasing", ErrCorrupt, i)
		}
		prev = offs
	}
	return nil
}

// Type returns the page type tag.
func Type(p *pager.Page) byte {
	return p[offType]
}

// IsLeaf reports whether p is a leaf page.
func IsLeaf(p *pager.Page) bool {
	return p[offType] == TypeLeaf
}

// NumItems returns the number of stored items.
func NumItems(p *pager.Page) int {
	return int(binary.BigEndian.Uint16(p[offNumItems : offNumItems+2]))
}

func setNumItems(p *pager.Page, n int) {
	binary.BigEndian.PutUint16(p[offNumItems:offNumItems+2], uint16(n))
}

// Offs returns the heap offset of slot i.
func Offs(p *pager.Page, i int) int {
	o := HeaderSize + i*2
	return int(binary.BigEndian.Uint16(p[o : o+2]))
}

// SetOffs writes the heap offset of slot i.
func SetOffs(p *pager.Page, i, offs int) {
	o := HeaderSize + i*2
	binary.BigEndian.PutUint16(p[o:o+2], uint16(offs))
}

// Item decodes the item at slot i into freshly allocated key and value
// slices.
func Item(p *pager.Page, i int) (key, value []byte) {
	offs := Offs(p, i)
	kl := int(binary.BigEndian.Uint16(p[offs : offs+2]))
	vl := int(binary.BigEndian.Uint16(p[offs+2 : offs+4]))
	key = append([]byte(nil), p[offs+4:offs+4+kl]...)
	value = append([]byte(nil), p[offs+4+kl:offs+4+kl+vl]...)
	return key, value
}

// keyAt returns the key of slot i as a subslice of the page buffer. The
// result is only valid until the page is next mutated.
func keyAt(p *pager.Page, i int) []byte {
	offs := Offs(p, i)
	kl := int(binary.BigEndian.Uint16(p[offs : offs+2]))
	return p[offs+4 : offs+4+kl]
}

// ItemSize returns the encoded size of an item: the 4-byte length
// header plus key and value bytes.
func ItemSize(key, value []byte) int {
	return 4 + len(key) + len(value)
}

// FreeStart returns the first free byte after the slot array.
func FreeStart(p *pager.Page) int {
	return HeaderSize + 2*NumItems(p)
}

// FreeEnd returns the heap offset of the last stored item, or the page
// size when the page is empty.
func FreeEnd(p *pager.Page) int {
	n := NumItems(p)
	if n == 0 {
		return pager.PageSize
	}
	return Offs(p, n-1)
}

// FreeSpace returns the bytes available between the slot array and the
// item heap.
func FreeSpace(p *pager.Page) int {
	return FreeEnd(p) - FreeStart(p)
}

// FindPlace returns the smallest slot index whose key is >= key, or
// NumItems(p) when key is greater than every stored key. On internal
// pages the last slot is the rightmost-child sentinel and matches any
// key, so the result there is always a valid child slot.
func FindPlace(p *pager.Page, key []byte) int {
	n := NumItems(p)
	internal := p[offType] == TypeInternal
	for i := 0; i < n; i++ {
		if internal && i == n-1 {
			return i
		}
		if bytes.Compare(key, keyAt(p, i)) <= 0 {
			return i
		}
	}
	return n
}

// InsertItem places (key, value) at slot ip, shifting later slots and
// their heap bytes to make room. It reports false, without mutating the
// page, when the item plus its slot does not fit in the free area.
func InsertItem(p *pager.Page, ip int, key, value []byte) bool {
	n := NumItems(p)
	il := ItemSize(key, value)
	if FreeEnd(p)-(HeaderSize+2*n) < il+2 {
		return false
	}

	newOffs := pager.PageSize - il
	if ip > 0 {
		newOffs = Offs(p, ip-1) - il
	}
	if ip < n {
		// Items in slots ip..n-1 occupy [dataStart, newOffs+il); move
		// them down by il to open the hole.
		dataStart := Offs(p, n-1)
		copy(p[dataStart-il:newOffs], p[dataStart:newOffs+il])
	}
	for j := n - 1; j >= ip; j-- {
		SetOffs(p, j+1, Offs(p, j)-il)
	}

	binary.BigEndian.PutUint16(p[newOffs:newOffs+2], uint16(len(key)))
	binary.BigEndian.PutUint16(p[newOffs+2:newOffs+4], uint16(len(value)))
	copy(p[newOffs+4:], key)
	copy(p[newOffs+4+len(key):], value)
	SetOffs(p, ip, newOffs)
	setNumItems(p, n+1)
	return true
}

// RemoveItem deletes slot ip and returns the decoded item. Surviving
// items above the hole shift towards the end of the page.
func RemoveItem(p *pager.Page, ip int) (key, value []byte) {
	n := NumItems(p)
	key, value = Item(p, ip)
	ioffs := Offs(p, ip)
	il := ItemSize(key, value)

	// Items in slots ip+1..n-1 occupy [dataStart, ioffs); move them up
	// by il to close the hole.
	dataStart := Offs(p, n-1)
	copy(p[dataStart+il:ioffs+il], p[dataStart:ioffs])
	for j := ip + 1; j < n; j++ {
		SetOffs(p, j-1, Offs(p, j)+il)
	}
	setNumItems(p, n-1)
	return key, value
}

// Split moves the upper half of p's items to a fresh page of the same
// type. Transferring right-to-left keeps slot order equal to key order
// on both sides without sorting. It returns the index of the last slot
// remaining in p and the new right page: p keeps slots [0, sp], the
// right page holds what was [sp+1, n).
func Split(p *pager.Page) (sp int, right *pager.Page) {
	n := NumItems(p)
	median := (n+1)/2 - 1
	right = new(pager.Page)
	Init(right, Type(p))
	for i := n - 1; i >= median; i-- {
		k, v := RemoveItem(p, i)
		InsertItem(right, 0, k, v)
	}
	return median - 1, right
}
