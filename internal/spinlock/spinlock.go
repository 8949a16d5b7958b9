// Package spinlock implements test-and-set mutual exclusion with the
// push_off/pop_off interrupt-nesting discipline: a spinlock may be held
// only with local interrupts disabled, since a timer interrupt landing on
// a hart already holding the lock could deadlock against a handler that
// wants the same lock.
package spinlock

import (
	"sync/atomic"

	"rvkernel/internal/defs"
)

/// Interrupt-enable state is, on real hardware, a single bit in sstatus.
/// This kernel runs as a hosted simulator with no real interrupts to mask,
/// so the bit is plain per-hart software state local to this package.
var (
	noff   [defs.NCPU]int32
	intena [defs.NCPU]bool
	intrOn [defs.NCPU]bool
)

func init() {
	for i := range intrOn {
		intrOn[i] = true
	}
}

/// IntrGet reports whether interrupts are currently enabled on hart.
func IntrGet(hart int) bool { return intrOn[hart] }

/// IntrOff disables interrupts on hart.
func IntrOff(hart int) { intrOn[hart] = false }

/// IntrOn enables interrupts on hart.
func IntrOn(hart int) { intrOn[hart] = true }

/// PushOff increments the calling hart's nested interrupt-disable counter,
/// snapshotting the prior interrupt-enable state only on the 0->1
/// transition.
func PushOff(hart int) {
	old := IntrGet(hart)
	IntrOff(hart)
	if noff[hart] == 0 {
		intena[hart] = old
	}
	noff[hart]++
}

/// PopOff undoes one PushOff. It panics if interrupts are enabled or the
/// nest counter underflows; it re-enables interrupts only once the
/// counter reaches zero and the outermost PushOff observed them enabled.
func PopOff(hart int) {
	if IntrGet(hart) {
		panic("pop_off - interruptible")
	}
	if noff[hart] < 1 {
		panic("pop_off")
	}
	noff[hart]--
	if noff[hart] == 0 && intena[hart] {
		IntrOn(hart)
	}
}

/// Holdany reports whether the calling hart holds at least one spinlock.
func Holdany(hart int) bool {
	return noff[hart] > 0
}

/// Lock_t is a test-and-set spinlock with interrupt-disable discipline and
/// a debug owning-hart field.
type Lock_t struct {
	name   string
	locked uint32
	hart   int32 // owning hart id, -1 when unlocked
}

/// MkLock returns an initialized, unlocked Lock_t.
func MkLock(name string) *Lock_t {
	return &Lock_t{name: name, hart: -1}
}

/// Name returns the lock's debug name.
func (lk *Lock_t) Name() string { return lk.name }

/// Holding reports whether hart currently holds the lock.
func (lk *Lock_t) Holding(hart int) bool {
	return atomic.LoadUint32(&lk.locked) != 0 && int(atomic.LoadInt32(&lk.hart)) == hart
}

/// Acquire disables interrupts on the local hart, asserts it does not
/// already hold the lock, then spin-waits with an atomic test-and-set.
func (lk *Lock_t) Acquire(hart int) {
	PushOff(hart)
	if lk.Holding(hart) {
		panic("acquire: " + lk.name)
	}
	for !atomic.CompareAndSwapUint32(&lk.locked, 0, 1) {
	}
	atomic.StoreInt32(&lk.hart, int32(hart))
}

/// Release asserts the caller holds the lock, clears ownership, releases
/// the flag, then restores interrupts via PopOff.
func (lk *Lock_t) Release(hart int) {
	if !lk.Holding(hart) {
		panic("release: " + lk.name)
	}
	atomic.StoreInt32(&lk.hart, -1)
	atomic.StoreUint32(&lk.locked, 0)
	PopOff(hart)
}

/// Lockassert panics unless hart holds the lock. Used at the top of
/// functions that require a lock already be held.
func (lk *Lock_t) Lockassert(hart int) {
	if !lk.Holding(hart) {
		panic("lockassert: " + lk.name + " not held")
	}
}
