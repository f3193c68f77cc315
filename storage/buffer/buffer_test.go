package buffer

import (
	"testing"

	"github.com/ryogrid/db0/storage/file"
)

func newTestManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	fm := file.New(t.TempDir(), file.WithMemBackend(file.NewMemStore()))
	return New(capacity, DefaultPageSize, fm)
}

func TestManager_NewPageThenFetch(t *testing.T) {
	mgr := newTestManager(t, 4)
	node := NewFileNode(TablespaceGlobal, 0, 1)

	ref, err := mgr.NewPage(node)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	copy(ref.BytesMut(), []byte("hello"))
	ref.SetDirty()
	pageNum := ref.PageNum()
	ref.Unpin()

	if err := mgr.FlushPages(); err != nil {
		t.Fatalf("FlushPages() error = %v", err)
	}

	ref2, err := mgr.FetchPage(PageTag{Node: node, Page: pageNum})
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	defer ref2.Unpin()
	if got := string(ref2.Bytes()[:5]); got != "hello" {
		t.Errorf("Bytes() = %q, want %q", got, "hello")
	}
}

func TestManager_EvictsLRUWhenFull(t *testing.T) {
	mgr := newTestManager(t, 2)
	node := NewFileNode(TablespaceGlobal, 0, 1)

	r0, err := mgr.NewPage(node)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	r0.SetDirty()
	r0.Unpin()

	r1, err := mgr.NewPage(node)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	r1.SetDirty()
	r1.Unpin()

	// both frames are unpinned and eligible; a third page forces an
	// eviction of page 0 (least recently used).
	r2, err := mgr.NewPage(node)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	defer r2.Unpin()

	ref, err := mgr.FetchPage(PageTag{Node: node, Page: r0.PageNum()})
	if err != nil {
		t.Fatalf("FetchPage() of evicted page error = %v", err)
	}
	ref.Unpin()
}

func TestManager_NoMoreBufferWhenAllPinned(t *testing.T) {
	mgr := newTestManager(t, 1)
	node := NewFileNode(TablespaceGlobal, 0, 1)

	ref, err := mgr.NewPage(node)
	if err != nil {
		t.Fatalf("NewPage() error = %v", err)
	}
	defer ref.Unpin()

	if _, err := mgr.NewPage(node); err != ErrNoMoreBuffer {
		t.Errorf("NewPage() error = %v, want %v", err, ErrNoMoreBuffer)
	}
}
