package btree

import (
	"math/rand"
	"testing"

	"github.com/ryogrid/db0/storage/buffer"
	"github.com/ryogrid/db0/storage/codec"
	"github.com/ryogrid/db0/storage/file"
)

func newTestTree(t *testing.T, capacity, nodeCapacity int) (*buffer.Manager, *BTree) {
	t.Helper()
	fm := file.New("testdata", file.WithMemBackend(file.NewMemStore()))
	mgr := buffer.New(capacity, buffer.DefaultPageSize, fm)
	node := buffer.NewFileNode(buffer.TablespaceGlobal, 0, 1)

	if err := Init(mgr, node, uint32(nodeCapacity)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	columns := []codec.Column{codec.NewColumn(1, 0, "abc", codec.TinyUint, 0, false)}
	tree := New(codec.New(columns), nodeCapacity, node, mgr)
	return mgr, tree
}

func tinyUintKey(i int) []codec.Value {
	return []codec.Value{codec.U8Value(uint8(i))}
}

func TestBTree_EmptyRoundtrip(t *testing.T) {
	_, tree := newTestTree(t, 10, 30)

	cursor, matched, err := tree.Cursor(tinyUintKey(5))
	if err != nil {
		t.Fatalf("Cursor() error = %v", err)
	}
	if matched {
		t.Errorf("matched = true, want false")
	}
	_, _, ok, err := cursor.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Errorf("Next() ok = true, want false on an empty tree")
	}
}

func assertAllPresent(t *testing.T, tree *BTree, keys []int) {
	t.Helper()
	for _, i := range keys {
		cursor, matched, err := tree.Cursor(tinyUintKey(i))
		if err != nil {
			t.Fatalf("Cursor(%d) error = %v", i, err)
		}
		if !matched {
			t.Fatalf("Cursor(%d) matched = false, want true", i)
		}
		_, value, ok, err := cursor.Next()
		if err != nil {
			t.Fatalf("Next() for %d error = %v", i, err)
		}
		if !ok {
			t.Fatalf("Next() for %d ok = false, want true", i)
		}
		if want := byte(i*2 + 5); len(value) != 1 || value[0] != want {
			t.Errorf("value for %d = %v, want [%d]", i, value, want)
		}
	}
}

func TestBTree_SequentialInsertion(t *testing.T) {
	_, tree := newTestTree(t, 20, 30)

	for i := 0; i < 120; i++ {
		if err := tree.Insert(tinyUintKey(i), []byte{byte(i*2 + 5)}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	keys := make([]int, 120)
	for i := range keys {
		keys[i] = i
	}
	assertAllPresent(t, tree, keys)
}

func TestBTree_RandomInsertion(t *testing.T) {
	_, tree := newTestTree(t, 20, 30)

	keys := make([]int, 120)
	for i := range keys {
		keys[i] = i
	}
	rand.New(rand.NewSource(1)).Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, i := range keys {
		if err := tree.Insert(tinyUintKey(i), []byte{byte(i*2 + 5)}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	assertAllPresent(t, tree, keys)
}

func TestBTree_Persistence(t *testing.T) {
	store := file.NewMemStore()
	fm := file.New("testdata", file.WithMemBackend(store))
	mgr := buffer.New(20, buffer.DefaultPageSize, fm)
	node := buffer.NewFileNode(buffer.TablespaceGlobal, 0, 1)

	if err := Init(mgr, node, 30); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	columns := []codec.Column{codec.NewColumn(1, 0, "abc", codec.TinyUint, 0, false)}
	keyCodec := codec.New(columns)
	tree := New(keyCodec, 30, node, mgr)

	for i := 0; i < 120; i++ {
		if err := tree.Insert(tinyUintKey(i), []byte{byte(i*2 + 5)}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}
	if err := mgr.FlushPages(); err != nil {
		t.Fatalf("FlushPages() error = %v", err)
	}

	fm2 := file.New("testdata", file.WithMemBackend(store))
	mgr2 := buffer.New(20, buffer.DefaultPageSize, fm2)
	tree2 := New(codec.New(columns), 30, node, mgr2)

	keys := make([]int, 120)
	for i := range keys {
		keys[i] = i
	}
	assertAllPresent(t, tree2, keys)
}

func TestBTree_SplitAtRightmost(t *testing.T) {
	const nodeCapacity = 30
	mgr, tree := newTestTree(t, 20, nodeCapacity)
	node := buffer.NewFileNode(buffer.TablespaceGlobal, 0, 1)

	for i := 0; i <= nodeCapacity; i++ {
		if err := tree.Insert(tinyUintKey(i), []byte{byte(i)}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	metaRef, err := mgr.FetchPage(buffer.PageTag{Node: node, Page: 0})
	if err != nil {
		t.Fatalf("FetchPage(meta) error = %v", err)
	}
	meta := newMeta(metaRef.Bytes())
	rootPageNum, level := meta.Root(), meta.Level()
	metaRef.Unpin()

	if level != 2 {
		t.Fatalf("level = %d, want 2", level)
	}

	rootRef, err := mgr.FetchPage(buffer.PageTag{Node: node, Page: rootPageNum})
	if err != nil {
		t.Fatalf("FetchPage(root) error = %v", err)
	}
	defer rootRef.Unpin()
	n, err := newNode(rootRef, tree.nodeCapacity, tree.keyCodec)
	if err != nil {
		t.Fatalf("newNode(root) error = %v", err)
	}
	if n.Branch == nil {
		t.Fatalf("root is not a branch")
	}
	if got := n.Branch.slotted.SlotCount(); got != 2 {
		t.Fatalf("root slot count = %d, want 2", got)
	}

	maxKey, err := tree.keyCodec.Encode(tinyUintKey(nodeCapacity))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if got := n.Branch.RawHighKey(); string(got) != string(maxKey) {
		t.Errorf("root high key = %v, want %v", got, maxKey)
	}
}

// walkLeafChain starts at the tree's leftmost leaf and follows
// next_page_num to the end, collecting every key it passes. It exercises
// the forward sibling chain directly, independent of branch descent, so a
// split that fails to relink a leaf's right neighbor shows up here even
// though per-key Cursor lookups would not notice it.
func walkLeafChain(t *testing.T, mgr *buffer.Manager, tree *BTree, node buffer.FileNode) []int {
	t.Helper()

	metaRef, err := mgr.FetchPage(buffer.PageTag{Node: node, Page: 0})
	if err != nil {
		t.Fatalf("FetchPage(meta) error = %v", err)
	}
	meta := newMeta(metaRef.Bytes())
	pageNum, level := meta.Root(), meta.Level()
	metaRef.Unpin()

	for i := 0; i < level-1; i++ {
		ref, err := mgr.FetchPage(buffer.PageTag{Node: node, Page: pageNum})
		if err != nil {
			t.Fatalf("FetchPage(%d) error = %v", pageNum, err)
		}
		n, err := newNode(ref, tree.nodeCapacity, tree.keyCodec)
		if err != nil {
			t.Fatalf("newNode(%d) error = %v", pageNum, err)
		}
		if n.Branch == nil {
			ref.Unpin()
			t.Fatalf("page %d is not a branch at level %d", pageNum, level-i)
		}
		slotBytes, err := n.Branch.slotted.Get(0)
		if err != nil {
			ref.Unpin()
			t.Fatalf("Get(0) error = %v", err)
		}
		pageNum = n.Branch.pageNum(slotBytes)
		ref.Unpin()
	}

	var keys []int
	for pageNum != 0 {
		ref, err := mgr.FetchPage(buffer.PageTag{Node: node, Page: pageNum})
		if err != nil {
			t.Fatalf("FetchPage(%d) error = %v", pageNum, err)
		}
		n, err := newNode(ref, tree.nodeCapacity, tree.keyCodec)
		if err != nil {
			ref.Unpin()
			t.Fatalf("newNode(%d) error = %v", pageNum, err)
		}
		if n.Leaf == nil {
			ref.Unpin()
			t.Fatalf("page %d is not a leaf", pageNum)
		}
		for i := 0; i < n.Leaf.EntriesCount(); i++ {
			key, _, err := n.Leaf.GetEntry(i)
			if err != nil {
				ref.Unpin()
				t.Fatalf("GetEntry(%d) error = %v", i, err)
			}
			keys = append(keys, int(key[0].U8()))
		}
		next := n.Leaf.NextPageNum()
		ref.Unpin()
		pageNum = next
	}
	return keys
}

func TestBTree_LeafChainStaysLinkedAcrossMidChainSplit(t *testing.T) {
	mgr, tree := newTestTree(t, 20, 30)
	node := buffer.NewFileNode(buffer.TablespaceGlobal, 0, 1)

	keys := make([]int, 120)
	for i := range keys {
		keys[i] = i
	}
	rand.New(rand.NewSource(7)).Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	for _, i := range keys {
		if err := tree.Insert(tinyUintKey(i), []byte{byte(i)}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	got := walkLeafChain(t, mgr, tree, node)
	if len(got) != 120 {
		t.Fatalf("walked %d keys, want 120 (chain is broken)", len(got))
	}
	for i, k := range got {
		if k != i {
			t.Fatalf("walked keys not in ascending order: position %d = %d, want %d", i, k, i)
		}
	}
}
