package vmm

import (
	"rvkernel/internal/defs"
)

/// BuildKernelPagetable constructs the kernel's direct-map page table: the
/// UART, VirtIO, and PLIC register windows identity-mapped read/write;
/// kernel text identity-mapped read+execute; kernel data and the
/// remaining RAM identity-mapped read+write; the trampoline mapped at its
/// fixed high virtual address read+execute; and one kernel stack per
/// process slot, separated by an unmapped guard page.
func (s *Space) BuildKernelPagetable(hart int, etext defs.Pa_t, trampoline defs.Pa_t) (defs.Pa_t, error) {
	root, ok := s.MkPagetable(hart)
	if !ok {
		return 0, ErrNoMem
	}

	type region struct {
		va   uintptr
		pa   defs.Pa_t
		size uintptr
		perm uint64
	}
	regions := []region{
		{defs.UART0, defs.UART0, defs.PGSIZE, defs.PTE_R | defs.PTE_W},
		{defs.VIRTIO0, defs.VIRTIO0, defs.PGSIZE, defs.PTE_R | defs.PTE_W},
		{defs.PLICBase, defs.PLICBase, 0x400_0000, defs.PTE_R | defs.PTE_W},
		{defs.KERNBASE, defs.KERNBASE, uintptr(etext) - defs.KERNBASE, defs.PTE_R | defs.PTE_X},
		{uintptr(etext), etext, defs.PHYSTOP - uintptr(etext), defs.PTE_R | defs.PTE_W},
		{defs.TRAMPOLINE, trampoline, defs.PGSIZE, defs.PTE_R | defs.PTE_X},
	}
	for _, r := range regions {
		if err := s.Map(root, r.va, r.size, r.pa, r.perm, hart); err != nil {
			return 0, err
		}
	}

	for p := 0; p < defs.NPROC; p++ {
		pa, ok := s.mem.Alloc(hart)
		if !ok {
			return 0, ErrNoMem
		}
		s.zero(pa)
		if err := s.Map(root, defs.Kstack(p), defs.PGSIZE, pa, defs.PTE_R|defs.PTE_W, hart); err != nil {
			return 0, err
		}
	}
	return root, nil
}
