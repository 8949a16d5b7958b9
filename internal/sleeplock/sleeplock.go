// Package sleeplock implements a blocking mutex for critical sections
// long enough that spinning would be wasteful -- disk I/O being the
// usual example. It is built directly on spinlock and the process
// table's Sleep/Wakeup, the same way the original layers one atop the
// other rather than inventing a separate blocking primitive.
package sleeplock

import (
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

/// Lock_t is a lock a process can hold across a sleep. The guard
/// spinlock only ever protects the locked/holder fields themselves; it
/// is never held while the sleeplock itself is held.
type Lock_t struct {
	guard  *spinlock.Lock_t
	locked bool
	holder int // pid of the current holder, 0 if unlocked

	table *proc.Table
}

/// MkLock constructs an unlocked sleeplock. table supplies the
/// Sleep/Wakeup the lock blocks on.
func MkLock(name string, table *proc.Table) *Lock_t {
	return &Lock_t{guard: spinlock.MkLock(name), table: table}
}

/// Acquire blocks the calling process (p, running on hart) until the
/// lock is free, then takes it.
func (l *Lock_t) Acquire(p *proc.Proc, hart int) {
	l.guard.Acquire(hart)
	for l.locked {
		l.table.Sleep(p, l, l.guard, hart)
	}
	l.locked = true
	l.holder = p.Pid()
	l.guard.Release(hart)
}

/// Release frees the lock and wakes anyone waiting on it.
func (l *Lock_t) Release(hart int) {
	l.guard.Acquire(hart)
	l.locked = false
	l.holder = 0
	l.table.Wakeup(l, hart)
	l.guard.Release(hart)
}

/// Holding reports whether p currently holds the lock.
func (l *Lock_t) Holding(p *proc.Proc, hart int) bool {
	l.guard.Acquire(hart)
	r := l.locked && l.holder == p.Pid()
	l.guard.Release(hart)
	return r
}
