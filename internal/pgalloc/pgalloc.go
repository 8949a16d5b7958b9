// Package pgalloc implements the physical page allocator: a free list
// threaded through the free pages themselves, guarded by one spinlock.
package pgalloc

import (
	"unsafe"

	"rvkernel/internal/defs"
	"rvkernel/internal/spinlock"
)

/// freeFillByte is written across a page when it is freed, to catch
/// use-after-free reads with a distinct, non-zero pattern.
const freeFillByte = 0x01

/// allocFillByte is written across a page when it is allocated, to catch
/// reads of uninitialized memory. Callers that need zeroed memory (user
/// sbrk growth, freshly allocated page-table nodes) must zero it
/// themselves -- pages are never handed out pre-zeroed.
const allocFillByte = 0x05

type node struct {
	next defs.Pa_t
}

/// Allocator_t is the physical-memory free-list allocator. The backing
/// array simulates RAM: physical addresses are offsets into it rather
/// than raw host pointers, so the allocator can run as an ordinary Go
/// value under test without mapping real memory.
type Allocator_t struct {
	lock *spinlock.Lock_t
	ram  []byte // backing store, indexed by Pa_t - base
	base defs.Pa_t
	end  defs.Pa_t // one past managed range (PHYSTOP)
	head defs.Pa_t // 0 means empty
}

/// MkAllocator constructs an allocator over a backing RAM slice. base is
/// the physical address ram[0] corresponds to; freestart..freeend is the
/// sub-range (e.g. kernel end through PHYSTOP) to seed onto the free list.
func MkAllocator(ram []byte, base, freestart, freeend defs.Pa_t) *Allocator_t {
	a := &Allocator_t{
		lock: spinlock.MkLock("physical_memory_allocator"),
		ram:  ram,
		base: base,
		end:  freeend,
	}
	a.freerange(freestart, freeend)
	return a
}

func (a *Allocator_t) pageBytes(pa defs.Pa_t) []byte {
	off := int(pa - a.base)
	return a.ram[off : off+defs.PGSIZE]
}

/// Page returns the PGSIZE byte window backing physical page pa. It is
/// exported so the VM manager can read and write page-table nodes and
/// leaf page contents through the same backing store the allocator uses.
func (a *Allocator_t) Page(pa defs.Pa_t) []byte {
	return a.pageBytes(pa)
}

/// Base returns the physical address ram[0] corresponds to.
func (a *Allocator_t) Base() defs.Pa_t { return a.base }

/// End returns one past the managed physical range.
func (a *Allocator_t) End() defs.Pa_t { return a.end }

func (a *Allocator_t) freerange(start, end defs.Pa_t) {
	cur := roundup(start, defs.PGSIZE)
	for cur+defs.PGSIZE <= end {
		a.free(cur, -1)
		cur += defs.PGSIZE
	}
}

func roundup(v defs.Pa_t, n defs.Pa_t) defs.Pa_t {
	return (v + n - 1) / n * n
}

/// Alloc pops the free-list head, fills it with the uninitialized-read
/// poison byte, and returns it. The zero Pa_t return value with ok=false
/// means the list was empty; callers must treat that as recoverable.
func (a *Allocator_t) Alloc(hart int) (pa defs.Pa_t, ok bool) {
	a.lock.Acquire(hart)
	head := a.head
	if head != 0 {
		n := (*node)(unsafe.Pointer(&a.pageBytes(head)[0]))
		a.head = n.next
	}
	a.lock.Release(hart)
	if head == 0 {
		return 0, false
	}
	page := a.pageBytes(head)
	for i := range page {
		page[i] = allocFillByte
	}
	return head, true
}

/// Free validates alignment and range, fills the page with the
/// use-after-free poison byte, and pushes it onto the free list. hart is
/// the calling hart id for lock bookkeeping; pass -1 during single-hart
/// boot-time seeding before any hart context exists.
func (a *Allocator_t) Free(pa defs.Pa_t, hart int) {
	a.free(pa, hart)
}

func (a *Allocator_t) free(pa defs.Pa_t, hart int) {
	if pa%defs.PGSIZE != 0 || pa < a.base || pa >= a.end {
		panic("pgalloc: free of invalid page")
	}
	page := a.pageBytes(pa)
	for i := range page {
		page[i] = freeFillByte
	}
	n := (*node)(unsafe.Pointer(&page[0]))

	if hart >= 0 {
		a.lock.Acquire(hart)
	}
	n.next = a.head
	a.head = pa
	if hart >= 0 {
		a.lock.Release(hart)
	}
}

/// Stats returns the number of pages currently on the free list, for
/// diagnostics and tests only.
func (a *Allocator_t) Stats(hart int) int {
	a.lock.Acquire(hart)
	n := 0
	for cur := a.head; cur != 0; {
		n++
		node := (*node)(unsafe.Pointer(&a.pageBytes(cur)[0]))
		cur = node.next
	}
	a.lock.Release(hart)
	return n
}
