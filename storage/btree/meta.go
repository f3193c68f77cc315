package btree

import (
	"encoding/binary"

	"github.com/ryogrid/db0/storage/buffer"
)

// metaMagic and metaVersion are written by Init and never checked against
// on read; a future format migration would gate on them.
const (
	metaMagic   uint32 = 0xd0b00001
	metaVersion uint32 = 1
)

// Meta is page 0 of a tree's file, per the meta page byte layout: page_type,
// level, node_capacity, magic, version, root, free_list.
type Meta struct {
	bytes []byte
}

func newMeta(bytes []byte) Meta { return Meta{bytes: bytes} }

// Init writes a fresh, empty meta page: level=0, root=0 ("no leaf yet").
func (m Meta) Init(nodeCapacity uint32) {
	m.bytes[0] = byte(PageTypeMeta)
	m.bytes[1] = 0
	binary.LittleEndian.PutUint32(m.bytes[2:6], nodeCapacity)
	binary.LittleEndian.PutUint32(m.bytes[6:10], metaMagic)
	binary.LittleEndian.PutUint32(m.bytes[10:14], metaVersion)
	binary.LittleEndian.PutUint32(m.bytes[14:18], 0)
	binary.LittleEndian.PutUint32(m.bytes[18:22], 0)
}

func (m Meta) PageType() PageType { return PageType(m.bytes[0]) }

func (m Meta) Level() int { return int(m.bytes[1]) }

func (m Meta) SetLevel(level int) { m.bytes[1] = byte(level) }

func (m Meta) NodeCapacity() uint32 { return binary.LittleEndian.Uint32(m.bytes[2:6]) }

func (m Meta) Magic() uint32 { return binary.LittleEndian.Uint32(m.bytes[6:10]) }

func (m Meta) Version() uint32 { return binary.LittleEndian.Uint32(m.bytes[10:14]) }

func (m Meta) Root() buffer.PageNum {
	return buffer.PageNum(binary.LittleEndian.Uint32(m.bytes[14:18]))
}

func (m Meta) SetRoot(pageNum buffer.PageNum) {
	binary.LittleEndian.PutUint32(m.bytes[14:18], uint32(pageNum))
}

func (m Meta) FreeList() buffer.PageNum {
	return buffer.PageNum(binary.LittleEndian.Uint32(m.bytes[18:22]))
}

func (m Meta) SetFreeList(pageNum buffer.PageNum) {
	binary.LittleEndian.PutUint32(m.bytes[18:22], uint32(pageNum))
}
