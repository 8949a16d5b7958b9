package pgalloc

import (
	"testing"
	"unsafe"

	"rvkernel/internal/defs"
)

func mkTestAllocator(npages int) *Allocator_t {
	base := defs.Pa_t(defs.KERNBASE)
	ram := make([]byte, npages*defs.PGSIZE)
	return MkAllocator(ram, base, base, base+defs.Pa_t(npages*defs.PGSIZE))
}

func TestAllocFreeRoundTrip(t *testing.T) {
	a := mkTestAllocator(4)
	if got := a.Stats(0); got != 4 {
		t.Fatalf("Stats() = %d, want 4", got)
	}

	pa, ok := a.Alloc(0)
	if !ok {
		t.Fatal("Alloc() failed on non-empty list")
	}
	page := a.pageBytes(pa)
	for i, b := range page {
		if b != allocFillByte {
			t.Fatalf("page[%d] = %#x, want alloc poison %#x", i, b, allocFillByte)
		}
	}
	if got := a.Stats(0); got != 3 {
		t.Fatalf("Stats() after alloc = %d, want 3", got)
	}

	a.Free(pa, 0)
	if got := a.Stats(0); got != 4 {
		t.Fatalf("Stats() after free = %d, want 4", got)
	}
	// The first word of a free page holds the free-list link; the rest
	// carries the poison.
	page = a.pageBytes(pa)
	for i := int(unsafe.Sizeof(node{})); i < len(page); i++ {
		if page[i] != freeFillByte {
			t.Fatalf("page[%d] = %#x, want free poison %#x", i, page[i], freeFillByte)
		}
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := mkTestAllocator(1)
	if _, ok := a.Alloc(0); !ok {
		t.Fatal("first Alloc() should succeed")
	}
	if _, ok := a.Alloc(0); ok {
		t.Fatal("Alloc() on empty list should return ok=false")
	}
}

func TestFreeRejectsMisaligned(t *testing.T) {
	a := mkTestAllocator(2)
	defer func() {
		if recover() == nil {
			t.Fatal("Free() of misaligned page should panic")
		}
	}()
	a.Free(defs.Pa_t(defs.KERNBASE)+1, 0)
}

func TestFreeRejectsOutOfRange(t *testing.T) {
	a := mkTestAllocator(2)
	defer func() {
		if recover() == nil {
			t.Fatal("Free() of out-of-range page should panic")
		}
	}()
	a.Free(defs.Pa_t(defs.KERNBASE)+100*defs.PGSIZE, 0)
}

func TestAllocIsLIFO(t *testing.T) {
	a := mkTestAllocator(3)
	p1, _ := a.Alloc(0)
	p2, _ := a.Alloc(0)
	a.Free(p1, 0)
	a.Free(p2, 0)
	got, _ := a.Alloc(0)
	if got != p2 {
		t.Fatalf("Alloc() = %#x, want most recently freed %#x", got, p2)
	}
}
