package tinystore

import (
	"encoding/binary"
	"errors"

	"github.com/tinystore-kv/tinystore/dbms/pager"
)

const (
	// metaMagic identifies a tinystore database file ("TINY").
	metaMagic = uint32(0x54494E59)

	// metaSize is the serialized metadata length at offset 0 of page 0.
	metaSize = 18
)

// ErrBadMagic reports a file that is not a tinystore database.
var ErrBadMagic = errors.New("tinystore: bad magic, not a tinystore database")

// metaData mirrors the tree state into the first bytes of page 0. The
// rest of the page is reserved. All fields big-endian.
type metaData struct {
	magic  uint32
	size   uint64 // database file length in bytes
	root   pager.PageID
	height uint16
}

func (m *metaData) encode(p *pager.Page) {
	binary.BigEndian.PutUint32(p[0:4], m.magic)
	binary.BigEndian.PutUint64(p[4:12], m.size)
	binary.BigEndian.PutUint32(p[12:16], uint32(m.root))
	binary.BigEndian.PutUint16(p[16:18], m.height)
}

func decodeMeta(p *pager.Page) metaData {
	return metaData{
		magic:  binary.BigEndian.Uint32(p[0:4]),
		size:   binary.BigEndian.Uint64(p[4:12]),
		root:   pager.PageID(binary.BigEndian.Uint32(p[12:16])),
		height: binary.BigEndian.Uint16(p[16:18]),
	}
}
