// Package page implements the slotted-page record layout shared by every
// B-link-tree index page: a slot directory growing from the front, record
// bytes growing down from the back.
package page

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed size, in bytes, of a SlottedPage's own header
// (slot_count, total_free_space, fragment_list, free_area_end), each a
// little-endian uint16.
const HeaderSize = 8

const slotSize = 4 // one uint32 per slot

// ErrIndexOutOfRange is returned by Get/Delete/UpdateSlot for a slot index
// at or beyond slot_count.
var ErrIndexOutOfRange = errors.New("page: slot index out of range")

// ErrSpaceNotEnough is returned by Insert/UpdateSlot when the page's free
// space cannot satisfy the request. The B-link-tree treats this purely as
// a signal to split; it must never escape to callers of BTree.Insert.
var ErrSpaceNotEnough = errors.New("page: not enough free space")

// slotState distinguishes live records from reserved states. Only Normal
// is produced by this core; Redirect and Dead are modeled for a future
// defragmenter/MVCC layer and never written.
type slotState uint32

const (
	slotUnused slotState = iota
	slotNormal
	slotRedirect
	slotDead
)

// slot is the bit-packed directory entry: flag:2 | offset:15 | length:15.
type slot uint32

func newSlot(offset, length uint16, state slotState) slot {
	return slot((uint32(state) << 30) | (uint32(offset) << 15) | uint32(length))
}

func (s slot) offset() int { return int((uint32(s) >> 15) & 0x7FFF) }
func (s slot) length() int { return int(uint32(s) & 0x7FFF) }

// SlottedPage manages variable-length records within a page-sized byte
// slice (the caller supplies the slice with any outer page header, e.g.
// Branch/Leaf's own header, already stripped off).
type SlottedPage struct {
	full []byte
}

// New wraps full, which must be at least HeaderSize bytes, as a
// SlottedPage. It does not initialize the header; call Init for a fresh
// page or rely on the header already being populated for an existing one.
func New(full []byte) *SlottedPage {
	return &SlottedPage{full: full}
}

func (p *SlottedPage) body() []byte { return p.full[HeaderSize:] }

func (p *SlottedPage) slotCount() int {
	return int(binary.LittleEndian.Uint16(p.full[0:2]))
}

func (p *SlottedPage) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(p.full[0:2], uint16(n))
}

func (p *SlottedPage) totalFreeSpace() int {
	return int(binary.LittleEndian.Uint16(p.full[2:4]))
}

func (p *SlottedPage) setTotalFreeSpace(n int) {
	binary.LittleEndian.PutUint16(p.full[2:4], uint16(n))
}

func (p *SlottedPage) freeAreaEnd() int {
	return int(binary.LittleEndian.Uint16(p.full[6:8]))
}

func (p *SlottedPage) setFreeAreaEnd(n int) {
	binary.LittleEndian.PutUint16(p.full[6:8], uint16(n))
}

// Init resets the page to empty: no slots, free space equal to the full
// body length, free_area_end at the last byte of the body.
func (p *SlottedPage) Init() {
	bodyLen := len(p.body())
	p.setSlotCount(0)
	p.setTotalFreeSpace(bodyLen)
	binary.LittleEndian.PutUint16(p.full[4:6], 0) // fragment_list, reserved
	p.setFreeAreaEnd(bodyLen - 1)
}

// SlotCount reports how many live slots the page holds.
func (p *SlottedPage) SlotCount() int { return p.slotCount() }

func (p *SlottedPage) slotsSize() int { return p.slotCount() * slotSize }

func (p *SlottedPage) readSlot(i int) slot {
	off := i * slotSize
	return slot(binary.LittleEndian.Uint32(p.body()[off : off+slotSize]))
}

func (p *SlottedPage) writeSlot(i int, s slot) {
	off := i * slotSize
	binary.LittleEndian.PutUint32(p.body()[off:off+slotSize], uint32(s))
}

func (p *SlottedPage) slotRange(i int) (int, int) {
	s := p.readSlot(i)
	return s.offset(), s.offset() + s.length()
}

// Get returns the record bytes stored at slotIdx.
func (p *SlottedPage) Get(slotIdx int) ([]byte, error) {
	if slotIdx < 0 || slotIdx >= p.slotCount() {
		return nil, ErrIndexOutOfRange
	}
	start, end := p.slotRange(slotIdx)
	return p.body()[start:end], nil
}

// GetRange returns body bytes in [start, end), for callers that already
// know an offset range. Branch and Leaf do not use it; they read records
// through Get.
func (p *SlottedPage) GetRange(start, end int) []byte {
	return p.body()[start:end]
}

func fragmentsLen(fragments [][]byte) int {
	n := 0
	for _, f := range fragments {
		n += len(f)
	}
	return n
}

func writeFragments(dst []byte, fragments [][]byte) {
	start := 0
	for _, f := range fragments {
		start += copy(dst[start:], f)
	}
}

// Insert allocates space for the concatenation of fragments, writes it at
// the free area's end, and inserts a new slot at slotIdx, shifting later
// slots right by one.
func (p *SlottedPage) Insert(slotIdx int, fragments [][]byte) error {
	length := fragmentsLen(fragments)
	spaceCost := slotSize + length

	if p.totalFreeSpace() < spaceCost {
		return ErrSpaceNotEnough
	}
	if p.slotsSize()+spaceCost > p.freeAreaEnd() {
		return ErrSpaceNotEnough
	}

	offset := p.freeAreaEnd() - length
	body := p.body()
	writeFragments(body[offset:offset+length], fragments)

	count := p.slotCount()
	// shift slot directory [slotIdx, count) right by one slot.
	for i := count; i > slotIdx; i-- {
		p.writeSlot(i, p.readSlot(i-1))
	}
	p.writeSlot(slotIdx, newSlot(uint16(offset), uint16(length), slotNormal))

	p.setSlotCount(count + 1)
	p.setTotalFreeSpace(p.totalFreeSpace() - spaceCost)
	p.setFreeAreaEnd(offset)
	return nil
}

// UpdateSlot rewrites the record at slotIdx. A same-or-smaller record is
// overwritten in place; a larger one is allocated fresh space from the
// free area's end, abandoning the old bytes (a documented space leak, see
// DESIGN.md — there is no defragmenter in this core).
func (p *SlottedPage) UpdateSlot(slotIdx int, fragments [][]byte) error {
	if slotIdx < 0 || slotIdx >= p.slotCount() {
		return ErrIndexOutOfRange
	}
	length := fragmentsLen(fragments)
	existing := p.readSlot(slotIdx)
	originLen := existing.length()

	var offset int
	if length <= originLen {
		offset = existing.offset()
	} else {
		if p.totalFreeSpace() < length {
			return ErrSpaceNotEnough
		}
		if p.slotsSize()+length > p.freeAreaEnd() {
			return ErrSpaceNotEnough
		}
		p.setTotalFreeSpace(p.totalFreeSpace() - (length - originLen))
		p.setFreeAreaEnd(p.freeAreaEnd() - length)
		offset = p.freeAreaEnd()
	}

	p.writeSlot(slotIdx, newSlot(uint16(offset), uint16(length), slotNormal))
	body := p.body()
	writeFragments(body[offset:offset+length], fragments)
	return nil
}

// Delete removes the record at slotIdx, shifting the slot directory left
// and compacting the record area so bytes below the deleted record's
// offset close the gap it left.
func (p *SlottedPage) Delete(slotIdx int) error {
	count := p.slotCount()
	if slotIdx < 0 || slotIdx >= count {
		return ErrIndexOutOfRange
	}
	deleted := p.readSlot(slotIdx)
	offset, length := deleted.offset(), deleted.length()

	for i := slotIdx; i < count-1; i++ {
		p.writeSlot(i, p.readSlot(i+1))
	}
	for i := 0; i < count-1; i++ {
		s := p.readSlot(i)
		if s.offset() < offset {
			p.writeSlot(i, newSlot(uint16(s.offset()+length), uint16(s.length()), slotNormal))
		}
	}

	body := p.body()
	end := p.freeAreaEnd()
	copy(body[end+length:offset+length], body[end:offset])

	p.setSlotCount(count - 1)
	p.setTotalFreeSpace(p.totalFreeSpace() + length + slotSize)
	p.setFreeAreaEnd(end + length)
	return nil
}

// SplitSlots moves the last count slots (by directory order — callers
// keep slots key-sorted, so this moves the highest keys) into other,
// re-inserting each record in order. The moved slots are simply excluded
// from self's slot_count afterward; their space is credited to
// total_free_space without compacting the record area (compaction is
// deferred, matching UpdateSlot's documented leak).
func (p *SlottedPage) SplitSlots(count int, other *SlottedPage) error {
	total := p.slotCount()
	spaceFreed := 0
	for i, slotIdx := 0, total-count; slotIdx < total; i, slotIdx = i+1, slotIdx+1 {
		s := p.readSlot(slotIdx)
		spaceFreed += s.length() + slotSize
		start, end := s.offset(), s.offset()+s.length()
		if err := other.Insert(i, [][]byte{p.body()[start:end]}); err != nil {
			return err
		}
	}
	p.setSlotCount(total - count)
	p.setTotalFreeSpace(p.totalFreeSpace() + spaceFreed)
	return nil
}
