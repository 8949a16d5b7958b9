// Package syscall implements the system-call dispatch mechanism: argument
// fetch from the trapframe and user memory, and the numbered dispatch
// table that routes a7 to a handler. The handlers themselves -- sys_open,
// sys_read, sys_exec and the rest -- live with whatever subsystem
// actually implements them; this package only knows how to find and call
// one.
package syscall

import (
	"fmt"

	"rvkernel/internal/defs"
	"rvkernel/internal/klog"
	"rvkernel/internal/proc"
	"rvkernel/internal/vmm"
)

/// Handler is a single system call implementation. It receives the
/// process's trapframe (already holding a0..a5) and the hart it is
/// running on, and returns the value to place in a0, or an error to
/// report as a negative return value.
type Handler func(tbl *proc.Table, vm *vmm.Space, p *proc.Proc, hart int) (uint64, error)

/// Table maps system call numbers to handlers. Build one with MkTable;
/// the zero value has no handler map, so Register on it panics.
type Table struct {
	handlers map[uint64]Handler
}

/// MkTable constructs an empty dispatch table.
func MkTable() *Table {
	return &Table{handlers: make(map[uint64]Handler)}
}

/// Register installs handler for the given syscall number, panicking if
/// one is already registered there -- a duplicate registration is always
/// a wiring bug, never a runtime condition to recover from.
func (t *Table) Register(num uint64, h Handler) {
	if _, exists := t.handlers[num]; exists {
		panic(fmt.Sprintf("syscall: handler already registered for %d", num))
	}
	t.handlers[num] = h
}

/// Has reports whether a handler is registered for num.
func (t *Table) Has(num uint64) bool {
	_, ok := t.handlers[num]
	return ok
}

/// Dispatch reads the syscall number from a7, calls the matching
/// handler, and writes its result (or -1 on an unknown number or
/// handler error) into a0 -- exactly the contract of xv6's syscall().
func (t *Table) Dispatch(tbl *proc.Table, vm *vmm.Space, p *proc.Proc, hart int) {
	tf := p.Trapframe()
	num := tf.A7

	h, ok := t.handlers[num]
	if !ok {
		klog.Hart(hart).Error("unknown sys call", "pid", p.Pid(), "name", p.Name(),
			"num", num, "syscall", Name(num))
		tf.A0 = ^uint64(0) // -1
		return
	}

	ret, err := h(tbl, vm, p, hart)
	if err != nil {
		tf.A0 = ^uint64(0)
		return
	}
	tf.A0 = ret
}

/// Argraw returns the raw value of the nth argument register (a0..a5).
func Argraw(p *proc.Proc, n int) uint64 {
	return p.Trapframe().Argraw(n)
}

/// Argint returns the nth argument truncated to a 32-bit signed int, the
/// width most syscalls that take a plain integer expect.
func Argint(p *proc.Proc, n int) int32 {
	return int32(Argraw(p, n))
}

/// Argaddr returns the nth argument as a user virtual address, unchecked
/// -- callers that dereference it through vm.CopyIn/CopyOut get the
/// bounds and permission checks there.
func Argaddr(p *proc.Proc, n int) uintptr {
	return uintptr(Argraw(p, n))
}

/// Argstr fetches the nth argument as a user virtual address and copies
/// the NUL-terminated string there into buf, at most len(buf) bytes. It
/// returns the string length excluding the terminator.
func Argstr(vm *vmm.Space, p *proc.Proc, n int, buf []byte) (int, error) {
	addr := Argaddr(p, n)
	if addr >= p.Size() {
		return 0, vmm.ErrFault
	}
	return vm.CopyInStr(p.Root(), buf, addr, len(buf))
}

/// Name returns the human-readable name of a syscall number, or "?" if
/// unknown -- used for diagnostics, mirroring syscall()'s error print.
func Name(num uint64) string {
	if n, ok := defs.SyscallNames[int(num)]; ok {
		return n
	}
	return "?"
}
