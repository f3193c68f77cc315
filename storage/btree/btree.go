package btree

import (
	"github.com/ryogrid/db0/storage/buffer"
	"github.com/ryogrid/db0/storage/codec"
)

// BTree is a B-link-tree index over one file, keyed and valued by
// codec-encoded tuples. It holds no page state itself — every operation
// fetches pages through manager, which owns their bytes.
type BTree struct {
	keyCodec     *codec.Codec
	nodeCapacity int
	fileNode     buffer.FileNode
	manager      *buffer.Manager
}

// stackNode records, for one level of a descent, the page visited and the
// slot that led to the next level down (or, at the leaf, the slot the key
// occupies or would occupy).
type stackNode struct {
	pageNum buffer.PageNum
	slotNum int
}

// Init writes a fresh meta page (page 0) for a tree with no root yet:
// root=0, level=0, node_capacity recorded for diagnostic purposes (the
// live node capacity a BTree enforces is the one passed to New, not
// re-read from this page).
func Init(manager *buffer.Manager, fileNode buffer.FileNode, nodeCapacity uint32) error {
	metaRef, err := manager.NewPage(fileNode)
	if err != nil {
		return err
	}
	defer metaRef.Unpin()

	newMeta(metaRef.Bytes()).Init(nodeCapacity)
	metaRef.SetDirty()
	return nil
}

// New builds an in-memory handle to an already-Init'd tree. It performs no
// I/O; node capacity is supplied directly rather than re-read from the
// meta page, matching the original's in-memory-authoritative design.
func New(keyCodec *codec.Codec, nodeCapacity int, fileNode buffer.FileNode, manager *buffer.Manager) *BTree {
	return &BTree{
		keyCodec:     keyCodec,
		nodeCapacity: nodeCapacity,
		fileNode:     fileNode,
		manager:      manager,
	}
}

func (t *BTree) fetchPage(pageNum buffer.PageNum) (*buffer.Ref, error) {
	return t.manager.FetchPage(buffer.PageTag{Node: t.fileNode, Page: pageNum})
}

// rootPageNum reads the meta page's current root and level.
func (t *BTree) rootPageNum() (buffer.PageNum, int, error) {
	metaRef, err := t.fetchPage(metaPageNum)
	if err != nil {
		return 0, 0, err
	}
	defer metaRef.Unpin()

	meta := newMeta(metaRef.Bytes())
	return meta.Root(), meta.Level(), nil
}

// createRootPage lazily allocates the tree's first leaf when an insert
// finds an empty tree (root == 0), and records it as level 1 in the meta
// page.
func (t *BTree) createRootPage() (buffer.PageNum, error) {
	rootRef, err := t.manager.NewPage(t.fileNode)
	if err != nil {
		return 0, err
	}
	root := newLeaf(rootRef.Bytes(), rootRef.PageNum(), t.nodeCapacity, t.keyCodec)
	root.Init(0, 0)
	pageNum := rootRef.PageNum()
	rootRef.SetDirty()
	rootRef.Unpin()

	metaRef, err := t.fetchPage(metaPageNum)
	if err != nil {
		return 0, err
	}
	meta := newMeta(metaRef.Bytes())
	meta.SetRoot(pageNum)
	meta.SetLevel(1)
	metaRef.SetDirty()
	metaRef.Unpin()

	return pageNum, nil
}

// search descends from the root to a leaf, recording at each level the
// page visited and the slot the descent took (or, at the leaf, the slot
// key occupies or would occupy). The returned stack is root-first,
// leaf-last, so callers walk it leaf-to-root by popping from the end.
func (t *BTree) search(key []codec.Value) ([]stackNode, bool, error) {
	pageNum, level, err := t.rootPageNum()
	if err != nil {
		return nil, false, err
	}

	stack := make([]stackNode, 0, level)
	isMatched := false

	for i := 0; i < level; i++ {
		ref, err := t.fetchPage(pageNum)
		if err != nil {
			return nil, false, err
		}
		n, err := newNode(ref, t.nodeCapacity, t.keyCodec)
		if err != nil {
			ref.Unpin()
			return nil, false, err
		}

		switch {
		case n.Branch != nil && i == level-1:
			ref.Unpin()
			return nil, false, ErrInvalidTreeStruct
		case n.Leaf != nil && i < level-1:
			ref.Unpin()
			return nil, false, ErrInvalidTreeStruct
		case n.Branch != nil:
			slotNum, child, err := n.Branch.Search(key)
			if err != nil {
				ref.Unpin()
				return nil, false, err
			}
			stack = append(stack, stackNode{pageNum: pageNum, slotNum: slotNum})
			pageNum = child
		default: // n.Leaf != nil
			slotNum, matched, err := n.Leaf.Search(key)
			if err != nil {
				ref.Unpin()
				return nil, false, err
			}
			isMatched = matched
			stack = append(stack, stackNode{pageNum: pageNum, slotNum: slotNum})
		}
		ref.Unpin()
	}

	return stack, isMatched, nil
}

// Insert adds key/value, lazily creating the root leaf on an empty tree,
// splitting nodes and propagating new high keys or splits up the descent
// stack, and growing the tree by one level at most once per call.
func (t *BTree) Insert(key []codec.Value, value []byte) error {
	pageNum, _, err := t.rootPageNum()
	if err != nil {
		return err
	}
	if pageNum == 0 {
		pageNum, err = t.createRootPage()
		if err != nil {
			return err
		}
	}

	rawKey, err := t.keyCodec.Encode(key)
	if err != nil {
		return err
	}

	stack, _, err := t.search(key)
	if err != nil {
		return err
	}

	var effect InsertEffect
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pageNum = top.pageNum

		ref, err := t.fetchPage(top.pageNum)
		if err != nil {
			return err
		}
		n, err := newNode(ref, t.nodeCapacity, t.keyCodec)
		if err != nil {
			ref.Unpin()
			return err
		}

		prevEffect := effect
		effect = nil

		switch {
		case n.Leaf != nil:
			effect, err = n.Leaf.Insert(rawKey, value, key, t.manager, t.fileNode)
		case prevEffect == nil:
			ref.Unpin()
			return nil
		default:
			switch e := prevEffect.(type) {
			case UpdateHighKeyEffect:
				if n.Branch.IsRightMostSlot(top.slotNum) {
					n.Branch.UpdateHighKey(e.RawHighKey)
					effect = e
				}
			case SplitEffect:
				effect, err = n.Branch.Insert(e.RawNewKey, e.SplitedPageNum, top.slotNum, e.RawHighKey, t.manager, t.fileNode)
			}
		}
		if err != nil {
			ref.Unpin()
			return err
		}

		ref.SetDirty()
		ref.Unpin()

		if effect == nil {
			return nil
		}
	}

	split, ok := effect.(SplitEffect)
	if !ok {
		return nil
	}

	newRootRef, err := t.manager.NewPage(t.fileNode)
	if err != nil {
		return err
	}
	initBranch(newRootRef.Bytes(), t.nodeCapacity, t.keyCodec, split.RawNewKey, split.RawHighKey, pageNum, split.SplitedPageNum, 0)
	newRootPageNum := newRootRef.PageNum()
	newRootRef.SetDirty()
	newRootRef.Unpin()

	metaRef, err := t.fetchPage(metaPageNum)
	if err != nil {
		return err
	}
	meta := newMeta(metaRef.Bytes())
	meta.SetRoot(newRootPageNum)
	meta.SetLevel(meta.Level() + 1)
	metaRef.SetDirty()
	metaRef.Unpin()

	return nil
}

// Cursor locates key and returns a Cursor positioned there, plus whether
// key was actually found. On an empty tree (no root yet) it returns a
// cursor that immediately reports end-of-iteration, matched=false — the
// degenerate case the original's stack-based implementation treats as an
// invalid-structure error.
func (t *BTree) Cursor(key []codec.Value) (*Cursor, bool, error) {
	stack, isMatched, err := t.search(key)
	if err != nil {
		return nil, false, err
	}
	if len(stack) == 0 {
		return &Cursor{tree: t, pageNum: 0, slotNum: 0, done: true}, false, nil
	}
	top := stack[len(stack)-1]
	return &Cursor{tree: t, pageNum: top.pageNum, slotNum: top.slotNum}, isMatched, nil
}
