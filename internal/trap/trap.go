// Package trap dispatches the three things that land a hart in
// supervisor mode: system calls, device interrupts, and exceptions. It
// has no CSRs to read -- scause/sepc/stval arrive as plain arguments from
// whatever drives the hart (the boot loop, or a test) -- but the control
// flow and the decisions made from those values are xv6's.
package trap

import (
	"fmt"

	"golang.org/x/arch/riscv64asm"

	"rvkernel/internal/caller"
	"rvkernel/internal/defs"
	"rvkernel/internal/klog"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/syscall"
	"rvkernel/internal/trampoline"
	"rvkernel/internal/vmm"
)

/// Cause values match the RISC-V scause encodings xv6 tests for
/// explicitly; every other value is an exception this kernel doesn't
/// expect and kills the faulting process over.
const (
	CauseSyscall      = 8
	CauseTimerIntr    = 0x8000000000000005
	CauseExternalIntr = 0x8000000000000009
)

/// kernelTrapMarker fills trapframe.KernelTrap: a real kernel has the
/// trampoline load and jump to this address on the next user trap. This
/// simulator's trap entry is driven by the boot loop calling Usertrap
/// directly, so the value only needs to be recognizably nonzero for
/// diagnostics, never dereferenced.
const kernelTrapMarker = 0xffff_ffff_8000_0000

/// DevKind reports what devintr found.
type DevKind int

const (
	DevNone DevKind = iota
	DevExternal
	DevTimer
)

/// PLIC is the subset of the platform interrupt controller the trap path
/// needs: claim the pending interrupt and acknowledge it once serviced.
type PLIC interface {
	Claim(hart int) (irq int, ok bool)
	Complete(hart int, irq int)
}

/// IRQHandler services one device's pending interrupt.
type IRQHandler interface {
	Interrupt(hart int)
}

/// Dispatcher wires the process table, address-space manager, syscall
/// table, and interrupt controller together into the trap path.
type Dispatcher struct {
	tbl *proc.Table
	vm  *vmm.Space
	sys *syscall.Table

	plic               PLIC
	uartIRQ, virtioIRQ int
	uart, virtio       IRQHandler

	ticksLock *spinlock.Lock_t
	ticks     uint64
}

/// MkDispatcher wires up a trap dispatcher. uart/virtio may be nil if
/// the corresponding device isn't present; an interrupt claimed for a
/// nil handler is simply acknowledged and dropped.
func MkDispatcher(tbl *proc.Table, vm *vmm.Space, sys *syscall.Table, plic PLIC, uart, virtio IRQHandler) *Dispatcher {
	return &Dispatcher{
		tbl:       tbl,
		vm:        vm,
		sys:       sys,
		plic:      plic,
		uartIRQ:   defs.UART0IRQ,
		virtioIRQ: defs.VIRTIO0IRQ,
		uart:      uart,
		virtio:    virtio,
		ticksLock: spinlock.MkLock("time"),
	}
}

/// Ticks returns the current timer tick count, for code that wants to
/// sleep until a future tick.
func (d *Dispatcher) Ticks() uint64 {
	return d.ticks
}

/// TicksChan returns the wait-channel value clockintr wakes: pass this
/// to Table.Sleep to block until the next tick.
func (d *Dispatcher) TicksChan() interface{} { return &d.ticks }

/// Usertrap handles a trap taken from user mode: sepc/scause/stval are
/// the hardware-saved values the trampoline would have read off the
/// CSRs. It returns true if the process is still alive and should be
/// returned to via UserTrapRet.
func (d *Dispatcher) Usertrap(p *proc.Proc, hart int, scause, sepc, stval uint64) bool {
	tf := p.Trapframe()
	tf.Epc = sepc

	timer := false
	switch scause {
	case CauseSyscall:
		if d.tbl.Killed(p, hart) {
			d.tbl.Exit(p, -1, hart)
		}
		tf.Epc += 4
		spinlock.IntrOn(hart)
		d.sys.Dispatch(d.tbl, d.vm, p, hart)

	default:
		if kind, ok := d.devintr(hart, scause); ok {
			timer = kind == DevTimer
		} else {
			d.reportFault(p, hart, scause, sepc, stval)
			d.tbl.SetKilled(p, hart)
		}
	}

	if d.tbl.Killed(p, hart) {
		d.tbl.Exit(p, -1, hart)
		return false
	}
	if timer {
		d.tbl.Yield(p, hart)
	}
	return true
}

/// UserTrapRet prepares a process's trapframe for its next trip back
/// into the kernel and hands control to the trampoline to return to user
/// space.
func (d *Dispatcher) UserTrapRet(p *proc.Proc, hart int, cpu trampoline.UserCPU, kernelSatp uint64) {
	spinlock.IntrOff(hart)

	tf := p.Trapframe()
	tf.KernelSatp = kernelSatp
	tf.KernelSp = uint64(defs.Kstack(p.Slot())) + defs.PGSIZE
	tf.KernelTrap = kernelTrapMarker
	tf.KernelHartid = uint64(hart)

	trampoline.Userret(cpu, tf)
}

/// KernelTrap handles a trap taken while already running kernel code: a
/// device interrupt is the only thing it expects to see. Anything else
/// is a kernel bug and panics, matching the original's refusal to limp
/// onward from a corrupted kernel-mode trap.
func (d *Dispatcher) KernelTrap(hart int, scause uint64) {
	if spinlock.IntrGet(hart) {
		caller.KernelPanic("trap: kerneltrap: interrupts enabled")
	}
	kind, ok := d.devintr(hart, scause)
	if !ok {
		caller.KernelPanic(fmt.Sprintf("trap: kerneltrap: unrecognized scause %#x", scause))
	}
	if kind == DevTimer {
		if p := d.tbl.Cur(hart); p != nil {
			d.tbl.Yield(p, hart)
		}
	}
}

func (d *Dispatcher) devintr(hart int, scause uint64) (DevKind, bool) {
	switch scause {
	case CauseExternalIntr:
		irq, ok := d.plic.Claim(hart)
		if ok {
			switch irq {
			case d.uartIRQ:
				if d.uart != nil {
					d.uart.Interrupt(hart)
				}
			case d.virtioIRQ:
				if d.virtio != nil {
					d.virtio.Interrupt(hart)
				}
			default:
				klog.Hart(hart).Warn("unexpected interrupt", "irq", irq)
			}
			d.plic.Complete(hart, irq)
		}
		return DevExternal, true

	case CauseTimerIntr:
		d.clockintr(hart)
		return DevTimer, true

	default:
		return DevNone, false
	}
}

func (d *Dispatcher) clockintr(hart int) {
	if hart == 0 {
		d.ticksLock.Acquire(hart)
		d.ticks++
		d.ticksLock.Release(hart)
		d.tbl.Wakeup(&d.ticks, hart)
	}
}

/// reportFault logs an unexpected trap the way usertrap's fallback print
/// does, additionally disassembling the faulting instruction when it can
/// still be read out of the process's address space -- the one piece
/// real hardware can't offer for free that a hosted simulator can.
func (d *Dispatcher) reportFault(p *proc.Proc, hart int, scause, sepc, stval uint64) {
	l := klog.Hart(hart).With("pid", p.Pid(), "scause", fmt.Sprintf("%#x", scause),
		"sepc", fmt.Sprintf("%#x", sepc), "stval", fmt.Sprintf("%#x", stval))

	buf := make([]byte, 4)
	if err := d.vm.CopyIn(p.Root(), buf, uintptr(sepc)); err == nil {
		if inst, err := riscv64asm.Decode(buf); err == nil {
			l = l.With("instruction", inst.String())
		}
	}
	l.Error("usertrap: unexpected scause")
}
