// Package fdops defines the operations an open file descriptor
// forwards to whatever backs it -- a console device, today; a pipe or
// on-disk inode in a kernel that implemented those layers. It mirrors
// struct file's dispatch through device_drivers[], generalized to an
// interface so fd doesn't need to know which kind of backing a
// descriptor has.
package fdops

import "rvkernel/internal/proc"

/// Fdops_i is implemented by anything a file descriptor can point at.
/// Read and Write take the calling process and hart because a console
/// read can block the caller waiting on input, the same reason
/// console_read itself takes the current process rather than operating
/// context-free. They report how many bytes were moved and any error.
/// Reopen bumps whatever reference count backs the descriptor for a
/// dup; Close drops it.
type Fdops_i interface {
	Read(p *proc.Proc, hart int, dst []byte) (int, error)
	Write(p *proc.Proc, hart int, src []byte) (int, error)
	Reopen() error
	Close() error
}
