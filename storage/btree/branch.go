package btree

import (
	"sort"

	"github.com/ryogrid/db0/storage/buffer"
	"github.com/ryogrid/db0/storage/codec"
	"github.com/ryogrid/db0/storage/page"
)

// branchHeaderSize is page_type(1) + dirty(1) + right_sibling(4).
const branchHeaderSize = 6

// Branch is a branch page: a slotted page whose slots each hold
// key_bytes || child_page_num, ordered by key. The last slot's key is the
// page's high key and its child is the rightmost child.
type Branch struct {
	full     []byte
	slotted  *page.SlottedPage
	capacity int
	keyCodec *codec.Codec
}

func newBranch(full []byte, capacity int, keyCodec *codec.Codec) *Branch {
	full[0] = byte(PageTypeBranch)
	return &Branch{
		full:     full,
		slotted:  page.New(full[branchHeaderSize:]),
		capacity: capacity,
		keyCodec: keyCodec,
	}
}

func (b *Branch) dirty() bool       { return b.full[1] != 0 }
func (b *Branch) setDirty(v bool)   { b.full[1] = boolByte(v) }
func (b *Branch) rightSibling() buffer.PageNum {
	return buffer.PageNum(leUint32(b.full[2:6]))
}
func (b *Branch) setRightSibling(p buffer.PageNum) { putLEUint32(b.full[2:6], uint32(p)) }

// initBranch turns a fresh page into a two-entry root branch: left's
// subtree holds everything up to rawKey, right's subtree holds the rest
// up to rawHighKey.
func initBranch(full []byte, capacity int, keyCodec *codec.Codec, rawKey, rawHighKey []byte, left, right, sibling buffer.PageNum) *Branch {
	b := newBranch(full, capacity, keyCodec)
	b.slotted.Init()
	leftBuf := make([]byte, 4)
	putLEUint32(leftBuf, uint32(left))
	rightBuf := make([]byte, 4)
	putLEUint32(rightBuf, uint32(right))
	mustInsert(b.slotted.Insert(0, [][]byte{rawKey, leftBuf}))
	mustInsert(b.slotted.Insert(1, [][]byte{rawHighKey, rightBuf}))
	b.setRightSibling(sibling)
	return b
}

func mustInsert(err error) {
	if err != nil {
		panic(err)
	}
}

func (b *Branch) rawKey(slotBytes []byte) []byte {
	return slotBytes[:len(slotBytes)-4]
}

func (b *Branch) pageNum(slotBytes []byte) buffer.PageNum {
	return buffer.PageNum(leUint32(slotBytes[len(slotBytes)-4:]))
}

func (b *Branch) key(slotBytes []byte) ([]codec.Value, error) {
	values, _, err := b.keyCodec.Decode(b.rawKey(slotBytes))
	return values, err
}

// RawHighKey returns the raw key bytes of the page's last slot.
func (b *Branch) RawHighKey() []byte {
	n := b.slotted.SlotCount()
	slotBytes, err := b.slotted.Get(n - 1)
	if err != nil {
		panic(err)
	}
	return append([]byte(nil), b.rawKey(slotBytes)...)
}

// Search locates the child to descend into for key: a binary search over
// every slot but the last (the high key never bounds a real comparison;
// its child is simply "everything greater").
func (b *Branch) Search(key []codec.Value) (slotNum int, childPageNum buffer.PageNum, err error) {
	n := b.slotted.SlotCount()
	index := sort.Search(n-1, func(i int) bool {
		slotBytes, gerr := b.slotted.Get(i)
		if gerr != nil {
			panic(gerr)
		}
		values, derr := b.key(slotBytes)
		if derr != nil {
			panic(derr)
		}
		return codec.CompareKeys(values, key) >= 0
	})
	slotBytes, err := b.slotted.Get(index)
	if err != nil {
		return 0, 0, err
	}
	return index, b.pageNum(slotBytes), nil
}

// IsRightMostSlot reports whether slotNum names this page's last slot.
func (b *Branch) IsRightMostSlot(slotNum int) bool {
	return slotNum == b.slotted.SlotCount()-1
}

// UpdateHighKey rewrites the last slot's key, keeping its child pointer.
func (b *Branch) UpdateHighKey(rawHighKey []byte) {
	n := b.slotted.SlotCount()
	slotBytes, err := b.slotted.Get(n - 1)
	if err != nil {
		panic(err)
	}
	pageNumBytes := append([]byte(nil), slotBytes[len(slotBytes)-4:]...)
	mustInsert(b.slotted.UpdateSlot(n-1, [][]byte{rawHighKey, pageNumBytes}))
}

// Insert rewires the slot at index (the branch's descent slot for the
// child that just split) to point at splitedPageNum — the new sibling,
// which keeps the slot's original key — then inserts a fresh slot just
// before it holding rawKey (the original child's shrunk high key) pointing
// at the original child. If index was the rightmost slot, the page's high
// key is updated to rawHighKey. If the page overflows its capacity, it
// splits in turn and the effect propagates further up.
func (b *Branch) Insert(rawKey []byte, splitedPageNum buffer.PageNum, index int, rawHighKey []byte, manager *buffer.Manager, fileNode buffer.FileNode) (InsertEffect, error) {
	updateHighKey := index == b.slotted.SlotCount()-1

	slotBytes, err := b.slotted.Get(index)
	if err != nil {
		return nil, err
	}
	originalPageNum := make([]byte, 4)
	putLEUint32(originalPageNum, uint32(b.pageNum(slotBytes)))
	originalRawKey := append([]byte(nil), b.rawKey(slotBytes)...)

	newPageNumBytes := make([]byte, 4)
	putLEUint32(newPageNumBytes, uint32(splitedPageNum))

	if err := b.slotted.UpdateSlot(index, [][]byte{originalRawKey, newPageNumBytes}); err != nil {
		return nil, err
	}
	if err := b.slotted.Insert(index, [][]byte{rawKey, originalPageNum}); err != nil {
		return nil, err
	}

	if updateHighKey {
		b.UpdateHighKey(rawHighKey)
	}

	if b.slotted.SlotCount() <= b.capacity {
		if updateHighKey {
			return UpdateHighKeyEffect{RawHighKey: rawHighKey}, nil
		}
		return nil, nil
	}

	splitedRef, err := manager.NewPage(fileNode)
	if err != nil {
		return nil, err
	}
	splitedPageNum2 := splitedRef.PageNum()
	splitedBranch := newBranch(splitedRef.Bytes(), b.capacity, b.keyCodec)
	splitedBranch.setRightSibling(b.rightSibling())
	splitedBranch.slotted.Init()

	slotsCount := b.slotted.SlotCount() / 2
	if err := b.slotted.SplitSlots(slotsCount, splitedBranch.slotted); err != nil {
		return nil, err
	}

	newRawHighKey := splitedBranch.RawHighKey()
	splitedRef.SetDirty()
	splitedRef.Unpin()

	b.setRightSibling(splitedPageNum2)

	return SplitEffect{
		RawNewKey:      b.RawHighKey(),
		RawHighKey:     newRawHighKey,
		SplitedPageNum: splitedPageNum2,
	}, nil
}
