// Package vmm implements the three-level Sv39 virtual memory manager:
// walk/map/unmap/copyout/copyin/copyinstr/grow/shrink/clone/freetree, and
// the kernel page table builder. Every mapping is eager -- there is no
// demand paging, copy-on-write, or swapping here.
package vmm

import (
	"errors"
	"unsafe"

	"rvkernel/internal/bounds"
	"rvkernel/internal/caller"
	"rvkernel/internal/defs"
	"rvkernel/internal/hashtable"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/res"
	"rvkernel/internal/util"
)

var (
	ErrFault    = errors.New("vmm: bad user address")
	ErrNoMem    = errors.New("vmm: out of physical memory")
	ErrMapped   = errors.New("vmm: remap of valid leaf")
	ErrNotAlign = errors.New("vmm: address or size not page aligned")
)

/// Space is the three-level page table manager. It owns no page tables
/// itself -- callers pass the Pa_t of whichever root they mean to
/// operate on -- but it does own the backing physical memory and the
/// debug registry of page-table nodes it has allocated.
type Space struct {
	mem      *pgalloc.Allocator_t
	registry *hashtable.Hashtable_t /// tracks every interior node Walk allocates
}

/// New returns a Space backed by the given physical allocator.
func New(mem *pgalloc.Allocator_t) *Space {
	return &Space{mem: mem, registry: hashtable.MkHash(1024)}
}

func pa2pte(pa defs.Pa_t) uint64  { return (uint64(pa) >> defs.PGSHIFT) << 10 }
func pte2pa(pte uint64) defs.Pa_t { return defs.Pa_t((pte >> 10) << defs.PGSHIFT) }

func px(level uint, va uintptr) uintptr {
	return (va >> defs.PXShift(level)) & defs.PXMASK
}

func (s *Space) ptesOf(table defs.Pa_t) *[512]uint64 {
	page := s.mem.Page(table)
	return (*[512]uint64)(unsafe.Pointer(&page[0]))
}

func (s *Space) zero(pa defs.Pa_t) {
	page := s.mem.Page(pa)
	for i := range page {
		page[i] = 0
	}
}

/// MkPagetable allocates and zeroes a fresh, empty page-table root page.
func (s *Space) MkPagetable(hart int) (defs.Pa_t, bool) {
	pa, ok := s.mem.Alloc(hart)
	if !ok {
		return 0, false
	}
	s.zero(pa)
	s.registry.Set(uintptr(pa), true)
	return pa, true
}

/// Walk descends the three levels of root, returning a pointer to the
/// leaf-level PTE slot for va. If create is set and an interior entry is
/// invalid, Walk allocates a fresh child node; the leaf level itself is
/// never auto-allocated -- the caller installs the mapping.
func (s *Space) Walk(root defs.Pa_t, va uintptr, create bool, hart int) (*uint64, bool) {
	if va >= defs.MAXVA {
		caller.KernelPanic("vmm: walk not in valid range")
	}
	table := root
	for level := uint(2); level > 0; level-- {
		ptes := s.ptesOf(table)
		pte := &ptes[px(level, va)]
		if *pte&defs.PTE_V != 0 {
			table = pte2pa(*pte)
			continue
		}
		if !create {
			return nil, false
		}
		child, ok := s.mem.Alloc(hart)
		if !ok {
			return nil, false
		}
		s.zero(child)
		s.registry.Set(uintptr(child), true)
		*pte = pa2pte(child) | defs.PTE_V
		table = child
	}
	ptes := s.ptesOf(table)
	return &ptes[px(0, va)], true
}

/// WalkAddr looks up a user virtual address and returns its physical
/// page, or ok=false if unmapped, invalid, or not user-accessible.
func (s *Space) WalkAddr(root defs.Pa_t, va uintptr) (defs.Pa_t, bool) {
	if va >= defs.MAXVA {
		return 0, false
	}
	pte, ok := s.Walk(root, va, false, 0)
	if !ok || pte == nil {
		return 0, false
	}
	if *pte&defs.PTE_V == 0 || *pte&defs.PTE_U == 0 {
		return 0, false
	}
	return pte2pa(*pte), true
}

/// Map installs size bytes of mappings starting at va, mapped to the
/// physical range starting at pa, with the given permission bits. va,
/// size, and pa must all be page aligned; it is an error to remap an
/// already-valid leaf.
func (s *Space) Map(root defs.Pa_t, va uintptr, size uintptr, pa defs.Pa_t, perm uint64, hart int) error {
	if va%defs.PGSIZE != 0 || size%defs.PGSIZE != 0 || size == 0 || uintptr(pa)%defs.PGSIZE != 0 {
		return ErrNotAlign
	}
	last := va + size - defs.PGSIZE
	cur, curpa := va, pa
	for {
		pte, ok := s.Walk(root, cur, true, hart)
		if !ok {
			return ErrNoMem
		}
		if *pte&defs.PTE_V != 0 {
			return ErrMapped
		}
		*pte = pa2pte(curpa) | perm | defs.PTE_V
		if cur == last {
			break
		}
		cur += defs.PGSIZE
		curpa += defs.PGSIZE
	}
	return nil
}

/// Unmap removes npages of mappings starting at va, which must be page
/// aligned. Every targeted leaf must exist; when free is set, the
/// backing physical page is returned to the allocator.
func (s *Space) Unmap(root defs.Pa_t, va uintptr, npages int, free bool, hart int) {
	if va%defs.PGSIZE != 0 {
		caller.KernelPanic("vmm: unmap not aligned")
	}
	for a := va; a < va+uintptr(npages)*defs.PGSIZE; a += defs.PGSIZE {
		pte, ok := s.Walk(root, a, false, hart)
		if !ok {
			caller.KernelPanic("vmm: unmap walk")
		}
		if *pte&defs.PTE_V == 0 {
			caller.KernelPanic("vmm: unmap not mapped")
		}
		if *pte&(defs.PTE_R|defs.PTE_W|defs.PTE_X) == 0 {
			caller.KernelPanic("vmm: unmap not a leaf")
		}
		if free {
			s.mem.Free(pte2pa(*pte), hart)
		}
		*pte = 0
	}
}

/// Freetree recurses over root, freeing each interior node after its
/// subtree. Every leaf entry must already have been cleared by a prior
/// Unmap; a leaf still present indicates a leak and aborts the operation.
/// Every node freed must have been allocated by this Space, verified
/// against the debug registry.
func (s *Space) Freetree(root defs.Pa_t, hart int) {
	ptes := s.ptesOf(root)
	for i := range ptes {
		pte := ptes[i]
		if pte&defs.PTE_V == 0 {
			continue
		}
		if pte&(defs.PTE_R|defs.PTE_W|defs.PTE_X) != 0 {
			caller.KernelPanic("vmm: freetree found live leaf")
		}
		child := pte2pa(pte)
		s.Freetree(child, hart)
		ptes[i] = 0
	}
	if !s.registry.Has(uintptr(root)) {
		caller.KernelPanic("vmm: freetree of untracked node")
	}
	s.registry.Del(uintptr(root))
	s.mem.Free(root, hart)
}

/// Uvmfree unmaps the first sz bytes of user memory, freeing the backing
/// pages, then frees the page-table tree itself.
func (s *Space) Uvmfree(root defs.Pa_t, sz uintptr, hart int) {
	if sz > 0 {
		npages := int(util.Roundup(sz, defs.PGSIZE) / defs.PGSIZE)
		s.Unmap(root, 0, npages, true, hart)
	}
	s.Freetree(root, hart)
}

/// UvmFirst loads the first process's initcode into address 0 of root.
/// len(code) must be less than a page.
func (s *Space) UvmFirst(root defs.Pa_t, code []byte, hart int) error {
	if len(code) >= defs.PGSIZE {
		caller.KernelPanic("vmm: initcode more than a page")
	}
	pa, ok := s.mem.Alloc(hart)
	if !ok {
		return ErrNoMem
	}
	s.zero(pa)
	copy(s.mem.Page(pa), code)
	return s.Map(root, 0, defs.PGSIZE, pa, defs.PTE_W|defs.PTE_R|defs.PTE_X|defs.PTE_U, hart)
}

/// Grow extends a user address space from old to new bytes, allocating
/// and zeroing fresh pages mapped read+user plus extraPerm. On partial
/// allocation failure it rolls back everything allocated so far and
/// returns the original size.
func (s *Space) Grow(root defs.Pa_t, old, new uintptr, extraPerm uint64, hart int) (uintptr, error) {
	if new < old {
		return old, nil
	}
	start := util.Roundup(old, defs.PGSIZE)
	for a := start; a < new; a += defs.PGSIZE {
		pa, ok := s.mem.Alloc(hart)
		if !ok {
			s.Shrink(root, a, start, hart)
			return old, ErrNoMem
		}
		s.zero(pa)
		if err := s.Map(root, a, defs.PGSIZE, pa, defs.PTE_R|defs.PTE_U|extraPerm, hart); err != nil {
			s.mem.Free(pa, hart)
			s.Shrink(root, a, start, hart)
			return old, err
		}
	}
	return new, nil
}

/// Shrink reduces a user address space from old to new bytes, unmapping
/// and freeing any now-excess whole pages. new need not be less than old;
/// a no-op shrink simply returns old unchanged.
func (s *Space) Shrink(root defs.Pa_t, old, new uintptr, hart int) uintptr {
	if new >= old {
		return old
	}
	oldUp := util.Roundup(old, defs.PGSIZE)
	newUp := util.Roundup(new, defs.PGSIZE)
	if newUp < oldUp {
		npages := int((oldUp - newUp) / defs.PGSIZE)
		s.Unmap(root, newUp, npages, true, hart)
	}
	return new
}

/// Clone deep-copies parentRoot's first size bytes of mappings into
/// childRoot: fresh physical pages are allocated for every mapped page
/// and their bytes and permission flags copied over. On failure it rolls
/// back every page it allocated.
func (s *Space) Clone(parentRoot, childRoot defs.Pa_t, size uintptr, hart int) error {
	var i uintptr
	for i = 0; i < size; i += defs.PGSIZE {
		pte, ok := s.Walk(parentRoot, i, false, hart)
		if !ok || pte == nil || *pte&defs.PTE_V == 0 {
			caller.KernelPanic("vmm: clone pte should exist")
		}
		flags := *pte & (defs.PTE_R | defs.PTE_W | defs.PTE_X | defs.PTE_U)
		src := s.mem.Page(pte2pa(*pte))
		dst, ok := s.mem.Alloc(hart)
		if !ok {
			s.Unmap(childRoot, 0, int(i/defs.PGSIZE), true, hart)
			return ErrNoMem
		}
		copy(s.mem.Page(dst), src)
		if err := s.Map(childRoot, i, defs.PGSIZE, dst, flags, hart); err != nil {
			s.mem.Free(dst, hart)
			s.Unmap(childRoot, 0, int(i/defs.PGSIZE), true, hart)
			return err
		}
	}
	return nil
}

/// CopyOut copies len(src) bytes from src into user memory at dstva,
/// translating one page at a time and requiring each leaf be valid,
/// user-accessible, and writable.
func (s *Space) CopyOut(root defs.Pa_t, dstva uintptr, src []byte) error {
	cost := bounds.Bounds(bounds.B_VMM_COPYOUT)
	for len(src) > 0 {
		if !res.Resadd_noblock(cost) {
			return ErrNoMem
		}
		va0 := util.Rounddown(dstva, defs.PGSIZE)
		if va0 >= defs.MAXVA {
			res.Resremove(cost)
			return ErrFault
		}
		pte, ok := s.Walk(root, va0, false, 0)
		if !ok || pte == nil || *pte&defs.PTE_V == 0 || *pte&defs.PTE_U == 0 || *pte&defs.PTE_W == 0 {
			res.Resremove(cost)
			return ErrFault
		}
		pa0 := pte2pa(*pte)
		n := defs.PGSIZE - (dstva - va0)
		if n > uintptr(len(src)) {
			n = uintptr(len(src))
		}
		page := s.mem.Page(pa0)
		copy(page[dstva-va0:], src[:n])
		src = src[n:]
		dstva = va0 + defs.PGSIZE
		res.Resremove(cost)
	}
	return nil
}

/// CopyIn copies len(dst) bytes from user memory at srcva into dst,
/// requiring each translated leaf be valid and user-accessible.
func (s *Space) CopyIn(root defs.Pa_t, dst []byte, srcva uintptr) error {
	cost := bounds.Bounds(bounds.B_VMM_COPYIN)
	for len(dst) > 0 {
		if !res.Resadd_noblock(cost) {
			return ErrNoMem
		}
		va0 := util.Rounddown(srcva, defs.PGSIZE)
		pa0, ok := s.WalkAddr(root, va0)
		if !ok {
			res.Resremove(cost)
			return ErrFault
		}
		n := defs.PGSIZE - (srcva - va0)
		if n > uintptr(len(dst)) {
			n = uintptr(len(dst))
		}
		page := s.mem.Page(pa0)
		copy(dst[:n], page[srcva-va0:])
		dst = dst[n:]
		srcva = va0 + defs.PGSIZE
		res.Resremove(cost)
	}
	return nil
}

/// CopyInStr copies a NUL-terminated string from user memory at srcva
/// into dst, stopping at the first NUL or at max bytes. It returns the
/// number of bytes copied (excluding the NUL) or an error if the string
/// does not terminate within max bytes or touches unmapped memory.
func (s *Space) CopyInStr(root defs.Pa_t, dst []byte, srcva uintptr, max int) (int, error) {
	cost := bounds.Bounds(bounds.B_VMM_COPYINSTR)
	got := 0
	for got < max {
		if !res.Resadd_noblock(cost) {
			return 0, ErrNoMem
		}
		va0 := util.Rounddown(srcva, defs.PGSIZE)
		pa0, ok := s.WalkAddr(root, va0)
		if !ok {
			res.Resremove(cost)
			return 0, ErrFault
		}
		page := s.mem.Page(pa0)
		off := int(srcva - va0)
		for off < defs.PGSIZE && got < max {
			c := page[off]
			if c == 0 {
				res.Resremove(cost)
				return got, nil
			}
			dst[got] = c
			got++
			off++
		}
		srcva = va0 + defs.PGSIZE
		res.Resremove(cost)
	}
	return 0, ErrFault
}
