package defs

/// Stable system-call numbers. Passed in the saved a7 register; up to six
/// integer/pointer arguments follow in a0..a5; the return value goes back
/// in a0, with -1 signalling error.
const (
	SYS_fork   = 1
	SYS_exit   = 2
	SYS_wait   = 3
	SYS_pipe   = 4
	SYS_read   = 5
	SYS_kill   = 6
	SYS_exec   = 7
	SYS_fstat  = 8
	SYS_chdir  = 9
	SYS_dup    = 10
	SYS_getpid = 11
	SYS_sbrk   = 12
	SYS_sleep  = 13
	SYS_uptime = 14
	SYS_open   = 15
	SYS_write  = 16
	SYS_mknod  = 17
	SYS_unlink = 18
	SYS_link   = 19
	SYS_mkdir  = 20
	SYS_close  = 21
)

/// SyscallNames maps a syscall number to its printable name, used by
/// procdump-style diagnostics and by cmd/syscheck.
var SyscallNames = map[int]string{
	SYS_fork:   "fork",
	SYS_exit:   "exit",
	SYS_wait:   "wait",
	SYS_pipe:   "pipe",
	SYS_read:   "read",
	SYS_kill:   "kill",
	SYS_exec:   "exec",
	SYS_fstat:  "fstat",
	SYS_chdir:  "chdir",
	SYS_dup:    "dup",
	SYS_getpid: "getpid",
	SYS_sbrk:   "sbrk",
	SYS_sleep:  "sleep",
	SYS_uptime: "uptime",
	SYS_open:   "open",
	SYS_write:  "write",
	SYS_mknod:  "mknod",
	SYS_unlink: "unlink",
	SYS_link:   "link",
	SYS_mkdir:  "mkdir",
	SYS_close:  "close",
}
