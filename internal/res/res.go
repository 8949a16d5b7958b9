// Package res guards a fixed kernel-wide budget of heap admission
// tickets. Loops that would otherwise run unbounded (copying memory
// across the user/kernel boundary one page at a time) draw from this
// budget before doing each unit of work, so that a kernel running
// close to its memory limit fails a single copy with ENOHEAP-style
// backpressure instead of exhausting physical pages out from under an
// unrelated subsystem.
package res

import "sync/atomic"

/// Budget is the total number of admission tickets outstanding work may
/// hold at once. It has no relation to the number of physical pages
/// available -- it bounds how much of that memory any one bounded loop
/// may claim concurrently, not the memory itself.
const Budget = 4096

var outstanding int64

/// Resadd_noblock attempts to reserve n tickets from the budget without
/// blocking, returning false if doing so would exceed Budget. Every
/// successful reservation must eventually be paired with
/// Resremove(n).
func Resadd_noblock(n int) bool {
	for {
		cur := atomic.LoadInt64(&outstanding)
		next := cur + int64(n)
		if next > Budget {
			return false
		}
		if atomic.CompareAndSwapInt64(&outstanding, cur, next) {
			return true
		}
	}
}

/// Resremove returns n previously reserved tickets to the budget.
func Resremove(n int) {
	atomic.AddInt64(&outstanding, -int64(n))
}

/// Outstanding reports the number of tickets currently reserved, for
/// diagnostics.
func Outstanding() int64 {
	return atomic.LoadInt64(&outstanding)
}
