package mem

import "testing"

func TestPoolAllocFree(t *testing.T) {
	p := NewPool(2)
	if p.Cap() != 2 || p.Avail() != 2 {
		t.Fatalf("unexpected cap/avail: %d/%d", p.Cap(), p.Avail())
	}
	a, ok := p.Alloc()
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	b, ok := p.Alloc()
	if !ok {
		t.Fatal("expected second alloc to succeed")
	}
	if p.Avail() != 0 {
		t.Fatalf("expected pool exhausted, avail=%d", p.Avail())
	}
	if _, ok := p.Alloc(); ok {
		t.Fatal("expected third alloc to fail")
	}
	p.Free(a)
	if p.Avail() != 1 {
		t.Fatalf("expected avail 1, got %d", p.Avail())
	}
	p.Free(b)
	if p.Avail() != 2 {
		t.Fatalf("expected avail 2, got %d", p.Avail())
	}
}

func TestPoolAllocZeroFilled(t *testing.T) {
	p := NewPool(1)
	a, _ := p.Alloc()
	pg := p.At(a)
	pg[0] = 0xff
	p.Free(a)
	a2, _ := p.Alloc()
	pg2 := p.At(a2)
	if pg2[0] != 0 {
		t.Fatal("reallocated frame should be zero-filled")
	}
}

func TestPoolDoubleFreePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	p := NewPool(1)
	a, _ := p.Alloc()
	p.Free(a)
	p.Free(a)
}
