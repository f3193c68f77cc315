package page

import (
	"bytes"
	"testing"
)

func TestSlottedPage_InsertGet(t *testing.T) {
	buf := make([]byte, 50)
	p := New(buf)
	p.Init()

	if got, want := p.totalFreeSpace(), 50-HeaderSize; got != want {
		t.Fatalf("totalFreeSpace() = %d, want %d", got, want)
	}

	d1 := []byte{1, 2, 3, 4, 5}
	if err := p.Insert(0, [][]byte{d1}); err != nil {
		t.Fatalf("Insert(0) error = %v", err)
	}
	d2 := []byte{6, 7, 8, 9, 10}
	if err := p.Insert(1, [][]byte{d2}); err != nil {
		t.Fatalf("Insert(1) error = %v", err)
	}
	d3 := []byte{12, 56, 89}
	if err := p.Insert(0, [][]byte{d3}); err != nil {
		t.Fatalf("Insert(0) error = %v", err)
	}

	if got := p.SlotCount(); got != 3 {
		t.Fatalf("SlotCount() = %d, want 3", got)
	}

	cases := []struct {
		idx  int
		want []byte
	}{
		{1, d1},
		{2, d2},
		{0, d3},
	}
	for _, c := range cases {
		got, err := p.Get(c.idx)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", c.idx, err)
		}
		if !bytes.Equal(got, c.want) {
			t.Errorf("Get(%d) = %v, want %v", c.idx, got, c.want)
		}
	}
}

func TestSlottedPage_SpaceNotEnough(t *testing.T) {
	buf := make([]byte, 32)
	p := New(buf)
	p.Init()

	if err := p.Insert(0, [][]byte{make([]byte, 100)}); err != ErrSpaceNotEnough {
		t.Errorf("Insert() error = %v, want %v", err, ErrSpaceNotEnough)
	}
}

func TestSlottedPage_DeleteCompactsAndShifts(t *testing.T) {
	buf := make([]byte, 64)
	p := New(buf)
	p.Init()

	for _, d := range [][]byte{{1, 1}, {2, 2, 2}, {3, 3, 3, 3}} {
		if err := p.Insert(p.SlotCount(), [][]byte{d}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if err := p.Delete(1); err != nil {
		t.Fatalf("Delete(1) error = %v", err)
	}
	if got := p.SlotCount(); got != 2 {
		t.Fatalf("SlotCount() = %d, want 2", got)
	}
	got0, _ := p.Get(0)
	if !bytes.Equal(got0, []byte{1, 1}) {
		t.Errorf("Get(0) = %v, want %v", got0, []byte{1, 1})
	}
	got1, _ := p.Get(1)
	if !bytes.Equal(got1, []byte{3, 3, 3, 3}) {
		t.Errorf("Get(1) = %v, want %v", got1, []byte{3, 3, 3, 3})
	}
}

func TestSlottedPage_SplitSlots(t *testing.T) {
	buf := make([]byte, 128)
	p := New(buf)
	p.Init()
	otherBuf := make([]byte, 128)
	other := New(otherBuf)
	other.Init()

	for i := 0; i < 6; i++ {
		if err := p.Insert(i, [][]byte{{byte(i)}}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	if err := p.SplitSlots(3, other); err != nil {
		t.Fatalf("SplitSlots() error = %v", err)
	}
	if got := p.SlotCount(); got != 3 {
		t.Errorf("self SlotCount() = %d, want 3", got)
	}
	if got := other.SlotCount(); got != 3 {
		t.Errorf("other SlotCount() = %d, want 3", got)
	}
	for i := 0; i < 3; i++ {
		got, err := other.Get(i)
		if err != nil {
			t.Fatalf("other.Get(%d) error = %v", i, err)
		}
		if want := byte(3 + i); len(got) != 1 || got[0] != want {
			t.Errorf("other.Get(%d) = %v, want [%d]", i, got, want)
		}
	}
}
