// Package buffer implements a fixed-capacity page cache with pin/unpin,
// dirty tracking, LRU victim selection, and write-back on eviction.
package buffer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/ncw/directio"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ryogrid/db0/storage/file"
)

// DefaultPageSize is the page size used when a caller does not need a
// different one; it matches spec's on-disk layout assumptions.
const DefaultPageSize = 4096

// descriptor is the per-frame metadata described by spec §3:
// BufferDescriptor. contentLock models a future per-frame content lock for
// a lock-coupling extension (see DESIGN.md); it is never taken by this
// single-threaded core.
type descriptor struct {
	tag         PageTag
	dirty       bool
	pinCount    int
	contentLock sync.RWMutex
}

// Manager is the buffer pool: a fixed number of frames, a page table
// mapping PageTag to frame index, a free list, and an LRU replacer over
// unpinned frames.
type Manager struct {
	pageSize    int64
	files       *file.Manager
	frames      [][]byte
	descriptors []descriptor
	pageTable   map[PageTag]int
	freeList    []int
	replacer    *lru.LRU[int, struct{}]
	log         *logrus.Entry
}

// New constructs a Manager with capacity frames of pageSize bytes each,
// backed by a file.Manager rooted at dataDir's files.
func New(capacity int, pageSize int64, files *file.Manager) *Manager {
	m := &Manager{
		pageSize:    pageSize,
		files:       files,
		frames:      make([][]byte, capacity),
		descriptors: make([]descriptor, capacity),
		pageTable:   make(map[PageTag]int, capacity),
		freeList:    make([]int, capacity),
		log:         logrus.WithField("component", "buffer.Manager"),
	}
	for i := 0; i < capacity; i++ {
		// Block-aligned so the default O_DIRECT backend can read/write a
		// frame directly; directio.OpenFile rejects unaligned buffers.
		m.frames[i] = directio.AlignedBlock(int(pageSize))
		m.freeList[i] = capacity - 1 - i
	}
	replacer, _ := lru.NewLRU[int, struct{}](capacity, nil)
	m.replacer = replacer
	return m
}

// reusePage obtains a frame id ready to be bound to a new tag, per spec
// §4.2's reuse_page algorithm: pop the free list first, else evict the LRU
// victim (writing it back first if dirty).
func (m *Manager) reusePage() (int, error) {
	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return id, nil
	}

	victim, _, ok := m.replacer.RemoveOldest()
	if !ok {
		return 0, ErrNoMoreBuffer
	}
	desc := &m.descriptors[victim]
	if desc.dirty {
		if err := m.writeBack(victim); err != nil {
			return 0, err
		}
	}
	delete(m.pageTable, desc.tag)
	m.log.WithField("frame_id", victim).WithField("page_tag", desc.tag).Debug("evicted frame for reuse")
	return victim, nil
}

func (m *Manager) writeBack(frameID int) error {
	desc := &m.descriptors[frameID]
	path := desc.tag.Node.RelativePath()
	offset := int64(desc.tag.Page) * m.pageSize
	if err := m.files.Write(path, offset, m.frames[frameID]); err != nil {
		return errors.Wrapf(err, "buffer: write back frame %d (%v)", frameID, desc.tag)
	}
	desc.dirty = false
	return nil
}

func (m *Manager) pin(frameID int) {
	desc := &m.descriptors[frameID]
	desc.pinCount++
	m.replacer.Remove(frameID)
}

func (m *Manager) unpin(frameID int) {
	desc := &m.descriptors[frameID]
	if desc.pinCount == 0 {
		return
	}
	desc.pinCount--
	if desc.pinCount == 0 {
		m.replacer.Add(frameID, struct{}{})
	}
}

// NewPage extends node's file by one page of zeros, obtains a frame, binds
// it to the new PageTag, and returns a pinned, mutable handle to it.
func (m *Manager) NewPage(node FileNode) (*Ref, error) {
	path := node.RelativePath()
	count, err := m.files.PageCount(path, m.pageSize)
	if err != nil {
		return nil, errors.Wrap(err, "buffer: new page")
	}
	pageNum := PageNum(count)

	frameID, err := m.reusePage()
	if err != nil {
		return nil, err
	}

	zeros := directio.AlignedBlock(int(m.pageSize))
	if err := m.files.Write(path, int64(pageNum)*m.pageSize, zeros); err != nil {
		m.descriptors[frameID].tag = PageTag{}
		m.freeList = append(m.freeList, frameID)
		return nil, errors.Wrap(err, "buffer: extend file for new page")
	}

	tag := PageTag{Node: node, Page: pageNum}
	for i := range m.frames[frameID] {
		m.frames[frameID][i] = 0
	}
	desc := &m.descriptors[frameID]
	desc.tag = tag
	desc.dirty = false
	m.pageTable[tag] = frameID
	m.pin(frameID)

	return &Ref{mgr: m, frameID: frameID, tag: tag}, nil
}

// FetchPage returns a pinned handle to tag's page, reading it from disk if
// it is not already resident.
func (m *Manager) FetchPage(tag PageTag) (*Ref, error) {
	if frameID, ok := m.pageTable[tag]; ok {
		m.pin(frameID)
		return &Ref{mgr: m, frameID: frameID, tag: tag}, nil
	}

	frameID, err := m.reusePage()
	if err != nil {
		return nil, err
	}

	path := tag.Node.RelativePath()
	if err := m.files.Read(path, int64(tag.Page)*m.pageSize, m.frames[frameID]); err != nil {
		m.descriptors[frameID].tag = PageTag{}
		m.freeList = append(m.freeList, frameID)
		return nil, errors.Wrapf(err, "buffer: fetch page %v", tag)
	}

	desc := &m.descriptors[frameID]
	desc.tag = tag
	desc.dirty = false
	m.pageTable[tag] = frameID
	m.pin(frameID)

	return &Ref{mgr: m, frameID: frameID, tag: tag}, nil
}

// FlushPages writes every dirty frame back to disk and clears its dirty
// flag. Writes performed by FetchPage/NewPage/Ref.SetDirty do not become
// durable until this is called.
func (m *Manager) FlushPages() error {
	for id := range m.descriptors {
		if m.descriptors[id].dirty {
			if err := m.writeBack(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// PageSize returns the fixed page size this manager was constructed with.
func (m *Manager) PageSize() int64 { return m.pageSize }

// Ref is an exclusive, pinned handle to one frame's bytes, per spec §4.2 /
// §9 "Shared mutable access to frames." Go has no destructors, so callers
// must call Unpin when done with the reference — typically via
// `defer ref.Unpin()` immediately after acquiring it, the idiomatic
// stand-in for the Rust original's Drop-based unpin.
type Ref struct {
	mgr     *Manager
	frameID int
	tag     PageTag
}

// Bytes borrows the frame's bytes for the lifetime of the reference.
func (r *Ref) Bytes() []byte { return r.mgr.frames[r.frameID] }

// BytesMut is an alias for Bytes: Go slices carry no mutability
// distinction, but the method exists to mirror spec's
// as_slice/as_slice_mut naming for readers translating from the original.
func (r *Ref) BytesMut() []byte { return r.Bytes() }

// SetDirty marks the frame dirty; the next eviction (or FlushPages call)
// must write it back.
func (r *Ref) SetDirty() { r.mgr.descriptors[r.frameID].dirty = true }

// PageNum reports the page number this frame currently holds.
func (r *Ref) PageNum() PageNum { return r.tag.Page }

// Tag reports the full PageTag this frame currently holds.
func (r *Ref) Tag() PageTag { return r.tag }

// Unpin releases the pin this reference holds. Once every Ref to a frame
// is unpinned, the frame becomes eligible for LRU eviction.
func (r *Ref) Unpin() { r.mgr.unpin(r.frameID) }
