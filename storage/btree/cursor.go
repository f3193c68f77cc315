package btree

import (
	"github.com/ryogrid/db0/storage/buffer"
	"github.com/ryogrid/db0/storage/codec"
)

// Cursor walks a leaf chain forward from the position BTree.Cursor found,
// one entry per Next call, following next_page_num across leaf boundaries.
// Unlike the source's split move_forward/get_entry pair, Next folds both
// into one step — a leaf is visited once per entry either way, and one
// call matches how every caller actually uses it.
type Cursor struct {
	tree    *BTree
	pageNum buffer.PageNum
	slotNum int
	done    bool
}

// Next returns the next key/value pair, or ok=false once the rightmost
// leaf is exhausted.
func (c *Cursor) Next() (key []codec.Value, value []byte, ok bool, err error) {
	if c.done {
		return nil, nil, false, nil
	}

	for {
		ref, err := c.tree.fetchPage(c.pageNum)
		if err != nil {
			return nil, nil, false, err
		}
		n, err := newNode(ref, c.tree.nodeCapacity, c.tree.keyCodec)
		if err != nil {
			ref.Unpin()
			return nil, nil, false, err
		}
		if n.Leaf == nil {
			ref.Unpin()
			return nil, nil, false, ErrInvalidTreeStruct
		}

		if c.slotNum >= n.Leaf.EntriesCount() {
			next := n.Leaf.NextPageNum()
			ref.Unpin()
			if next == 0 {
				c.done = true
				return nil, nil, false, nil
			}
			c.pageNum = next
			c.slotNum = 0
			continue
		}

		key, value, err := n.Leaf.GetEntry(c.slotNum)
		ref.Unpin()
		if err != nil {
			return nil, nil, false, err
		}
		c.slotNum++
		return key, value, true, nil
	}
}
