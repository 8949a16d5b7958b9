package trap

import (
	"testing"

	"rvkernel/internal/defs"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/proc"
	"rvkernel/internal/syscall"
	"rvkernel/internal/vmm"
)

type fakePLIC struct {
	irq     int
	claimed bool
	done    int
}

func (f *fakePLIC) Claim(hart int) (int, bool) {
	if f.claimed {
		return 0, false
	}
	f.claimed = true
	return f.irq, true
}
func (f *fakePLIC) Complete(hart int, irq int) { f.done = irq }

type fakeIRQHandler struct{ fired int }

func (f *fakeIRQHandler) Interrupt(hart int) { f.fired++ }

func mkTestDispatcher(npages int) (*Dispatcher, *proc.Table, *proc.Proc) {
	base := defs.Pa_t(defs.KERNBASE)
	ram := make([]byte, npages*defs.PGSIZE)
	mem := pgalloc.MkAllocator(ram, base, base, base+defs.Pa_t(npages*defs.PGSIZE))
	vm := vmm.New(mem)
	trampolinePA, _ := mem.Alloc(0)
	tbl := proc.MkTable(vm, mem, trampolinePA, func(*proc.Table, *proc.Proc) {})
	p := tbl.Userinit([]byte{0x13, 0x00, 0x00, 0x00}, 0)
	sys := syscall.MkTable()
	d := MkDispatcher(tbl, vm, sys, &fakePLIC{irq: defs.UART0IRQ}, &fakeIRQHandler{}, &fakeIRQHandler{})
	return d, tbl, p
}

func TestUsertrapDispatchesSyscallAndAdvancesEpc(t *testing.T) {
	d, tbl, p := mkTestDispatcher(32)
	d.sys.Register(uint64(defs.SYS_getpid), func(tbl *proc.Table, vm *vmm.Space, p *proc.Proc, hart int) (uint64, error) {
		return uint64(p.Pid()), nil
	})
	p.Trapframe().A7 = uint64(defs.SYS_getpid)

	alive := d.Usertrap(p, 0, CauseSyscall, 0x1000, 0)

	if !alive {
		t.Fatal("process should still be alive")
	}
	if p.Trapframe().Epc != 0x1004 {
		t.Fatalf("epc = %#x, want 0x1004", p.Trapframe().Epc)
	}
	if p.Trapframe().A0 != uint64(p.Pid()) {
		t.Fatalf("a0 = %d, want pid %d", p.Trapframe().A0, p.Pid())
	}
	_ = tbl
}

func TestUsertrapExternalInterruptRoutesToHandler(t *testing.T) {
	d, _, p := mkTestDispatcher(32)

	alive := d.Usertrap(p, 0, CauseExternalIntr, 0x1000, 0)

	if !alive {
		t.Fatal("process should still be alive")
	}
	if d.uart.(*fakeIRQHandler).fired != 1 {
		t.Fatalf("uart handler fired %d times, want 1", d.uart.(*fakeIRQHandler).fired)
	}
	if d.plic.(*fakePLIC).done != defs.UART0IRQ {
		t.Fatalf("plic.Complete called with %d, want %d", d.plic.(*fakePLIC).done, defs.UART0IRQ)
	}
}

func TestUsertrapUnknownCauseKillsProcess(t *testing.T) {
	d, tbl, p := mkTestDispatcher(32)

	alive := d.Usertrap(p, 0, 0x7, 0x1000, 0xbadaddr)

	if alive {
		t.Fatal("process should have been killed")
	}
	if p.State() != proc.Zombie {
		t.Fatalf("state = %v, want Zombie", p.State())
	}
	_ = tbl
}

func TestClockintrIncrementsTicksOnHartZero(t *testing.T) {
	d, _, _ := mkTestDispatcher(32)

	d.clockintr(0)
	d.clockintr(0)

	if got := d.Ticks(); got != 2 {
		t.Fatalf("ticks = %d, want 2", got)
	}
}

func TestClockintrIgnoredOnOtherHarts(t *testing.T) {
	d, _, _ := mkTestDispatcher(32)

	d.clockintr(1)

	if got := d.Ticks(); got != 0 {
		t.Fatalf("ticks = %d, want 0", got)
	}
}
