// Package trampoline models the double-mapped trampoline page: the single
// piece of code mapped at the same virtual address (defs.TRAMPOLINE) in
// every address space, kernel and user alike, so the trap handler can
// survive the satp switch between page tables.
//
// A real RISC-V trampoline is hand-written assembly that swaps sp/satp and
// spills/reloads the 31 general registers through the trapframe. This
// simulator has no instruction-level CPU to execute that assembly against,
// so UserCPU stands in for "the hardware register file of one hart" and
// Uservec/Userret perform the same register <-> trapframe shuffle UserCPU
// exposes as method calls instead of load/store instructions.
package trampoline

import "rvkernel/internal/trapframe"

/// UserCPU abstracts the register file and program counter of one hart,
/// the pieces real trampoline assembly touches directly. A hosted
/// implementation backs this with an ordinary struct; hardware would back
/// it with actual CSRs and GPRs.
type UserCPU interface {
	SaveTrapframe(tf *trapframe.Trapframe)
	RestoreTrapframe(tf *trapframe.Trapframe)
	SetPC(pc uint64)
	PC() uint64
}

/// Uservec is the trap-entry half of the trampoline: it saves the
/// interrupted user registers into the trapframe and returns the kernel
/// entry point (trapframe.KernelTrap) and kernel stack pointer
/// (trapframe.KernelSp) the caller should resume execution on.
func Uservec(cpu UserCPU, tf *trapframe.Trapframe) (kernelTrap uint64, kernelSp uint64) {
	tf.Epc = cpu.PC()
	cpu.SaveTrapframe(tf)
	return tf.KernelTrap, tf.KernelSp
}

/// Userret is the trap-return half: it restores the saved user registers
/// and program counter from the trapframe. It does not switch page
/// tables; the satp write real trampoline code performs here is not
/// modeled.
func Userret(cpu UserCPU, tf *trapframe.Trapframe) {
	cpu.RestoreTrapframe(tf)
	cpu.SetPC(tf.Epc)
}
