package btree

import (
	"sort"

	"github.com/ryogrid/db0/storage/buffer"
	"github.com/ryogrid/db0/storage/codec"
	"github.com/ryogrid/db0/storage/page"
)

// leafHeaderSize is page_type(1) + dirty(1) + prev_page_num(4) + next_page_num(4).
const leafHeaderSize = 10

// Leaf is a leaf page: a slotted page whose slots each hold
// key_bytes || value_bytes, ordered by key. The last slot's key is the
// leaf's high key. next_page_num == 0 marks the rightmost leaf.
type Leaf struct {
	full     []byte
	slotted  *page.SlottedPage
	capacity int
	keyCodec *codec.Codec
	pageNum  buffer.PageNum
}

func newLeaf(full []byte, pageNum buffer.PageNum, capacity int, keyCodec *codec.Codec) *Leaf {
	full[0] = byte(PageTypeLeaf)
	return &Leaf{
		full:     full,
		slotted:  page.New(full[leafHeaderSize:]),
		capacity: capacity,
		keyCodec: keyCodec,
		pageNum:  pageNum,
	}
}

func (l *Leaf) PrevPageNum() buffer.PageNum { return buffer.PageNum(leUint32(l.full[2:6])) }
func (l *Leaf) NextPageNum() buffer.PageNum { return buffer.PageNum(leUint32(l.full[6:10])) }
func (l *Leaf) setPrevPageNum(p buffer.PageNum) { putLEUint32(l.full[2:6], uint32(p)) }
func (l *Leaf) setNextPageNum(p buffer.PageNum) { putLEUint32(l.full[6:10], uint32(p)) }

// Init resets the page as an empty leaf linked between prev and next.
func (l *Leaf) Init(nextPageNum, prevPageNum buffer.PageNum) {
	l.full[0] = byte(PageTypeLeaf)
	l.setNextPageNum(nextPageNum)
	l.setPrevPageNum(prevPageNum)
	l.slotted.Init()
}

// EntriesCount reports how many live entries the leaf holds.
func (l *Leaf) EntriesCount() int { return l.slotted.SlotCount() }

func (l *Leaf) keyLen(slotBytes []byte) (int, error) {
	_, consumed, err := l.keyCodec.Decode(slotBytes)
	return consumed, err
}

func (l *Leaf) rawHighKey() ([]byte, error) {
	n := l.slotted.SlotCount()
	slotBytes, err := l.slotted.Get(n - 1)
	if err != nil {
		return nil, err
	}
	keyLen, err := l.keyLen(slotBytes)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), slotBytes[:keyLen]...), nil
}

func (l *Leaf) key(slotBytes []byte) ([]codec.Value, error) {
	values, _, err := l.keyCodec.Decode(slotBytes)
	return values, err
}

// Search finds the slot for key, or its insertion point if absent.
func (l *Leaf) Search(key []codec.Value) (slotNum int, matched bool, err error) {
	n := l.slotted.SlotCount()
	var searchErr error
	index := sort.Search(n, func(i int) bool {
		slotBytes, gerr := l.slotted.Get(i)
		if gerr != nil {
			searchErr = gerr
			return true
		}
		values, derr := l.key(slotBytes)
		if derr != nil {
			searchErr = derr
			return true
		}
		return codec.CompareKeys(values, key) >= 0
	})
	if searchErr != nil {
		return 0, false, searchErr
	}
	if index < n {
		slotBytes, err := l.slotted.Get(index)
		if err != nil {
			return 0, false, err
		}
		values, err := l.key(slotBytes)
		if err != nil {
			return 0, false, err
		}
		if codec.CompareKeys(values, key) == 0 {
			return index, true, nil
		}
	}
	return index, false, nil
}

// GetEntry decodes the key and value stored at slotNum, for Cursor.
func (l *Leaf) GetEntry(slotNum int) ([]codec.Value, []byte, error) {
	slotBytes, err := l.slotted.Get(slotNum)
	if err != nil {
		return nil, nil, err
	}
	values, consumed, err := l.keyCodec.Decode(slotBytes)
	if err != nil {
		return nil, nil, err
	}
	value := append([]byte(nil), slotBytes[consumed:]...)
	return values, value, nil
}

// Insert places key/value at their sorted position. A duplicate key is a
// silent no-op (see DESIGN.md). If the leaf overflows its capacity it
// splits, returning a SplitEffect; if the insert extended the leaf's high
// key without overflowing, it returns an UpdateHighKeyEffect.
func (l *Leaf) Insert(rawKey, value []byte, key []codec.Value, manager *buffer.Manager, fileNode buffer.FileNode) (InsertEffect, error) {
	index, matched, err := l.Search(key)
	if err != nil {
		return nil, err
	}
	if matched {
		return nil, nil
	}
	updateHighKey := index == l.slotted.SlotCount()

	if err := l.slotted.Insert(index, [][]byte{rawKey, value}); err != nil {
		return nil, err
	}

	if l.slotted.SlotCount() <= l.capacity {
		if updateHighKey {
			return UpdateHighKeyEffect{RawHighKey: rawKey}, nil
		}
		return nil, nil
	}

	oldNext := l.NextPageNum()

	splitedRef, err := manager.NewPage(fileNode)
	if err != nil {
		return nil, err
	}
	splitedPageNum := splitedRef.PageNum()
	splitedLeaf := newLeaf(splitedRef.Bytes(), splitedPageNum, l.capacity, l.keyCodec)
	splitedLeaf.Init(oldNext, l.pageNum)

	slotsCount := (l.slotted.SlotCount() + 1) / 2
	if err := l.slotted.SplitSlots(slotsCount, splitedLeaf.slotted); err != nil {
		return nil, err
	}

	l.setNextPageNum(splitedPageNum)

	// The old right neighbor's prev pointer must follow the new sibling
	// that now sits between this leaf and it, or walking prev_page_num
	// backward from that neighbor would skip the new sibling.
	if oldNext != 0 {
		oldNextRef, err := manager.FetchPage(buffer.PageTag{Node: fileNode, Page: oldNext})
		if err != nil {
			return nil, err
		}
		newLeaf(oldNextRef.Bytes(), oldNext, l.capacity, l.keyCodec).setPrevPageNum(splitedPageNum)
		oldNextRef.SetDirty()
		oldNextRef.Unpin()
	}

	rawHighKey, err := splitedLeaf.rawHighKey()
	if err != nil {
		return nil, err
	}
	splitedRef.SetDirty()
	splitedRef.Unpin()

	rawNewKey, err := l.rawHighKey()
	if err != nil {
		return nil, err
	}

	return SplitEffect{
		RawNewKey:      rawNewKey,
		RawHighKey:     rawHighKey,
		SplitedPageNum: splitedPageNum,
	}, nil
}
