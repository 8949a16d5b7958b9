// Package plic models the platform-level interrupt controller's claim/
// complete protocol: a hart claims the next pending interrupt, services
// it, then tells the controller it's done. There is no physical PLIC
// register file to memory-map, so pending interrupts are represented
// directly as a first-in, first-out queue per hart.
package plic

import "rvkernel/internal/spinlock"

/// PLIC tracks interrupts pending per hart and hands them out in the
/// order they were raised -- the real PLIC's round-robin-by-priority
/// behavior isn't needed here since every source in this kernel
/// (uart, virtio) is raised independently and claimed promptly.
type PLIC struct {
	lock *spinlock.Lock_t

	enabled map[[2]int]bool // keyed by {hart, irq}
	pending [][]int         // per-hart FIFO of pending irq numbers
}

/// New builds a PLIC serving nharts harts, with no sources enabled.
func New(nharts int) *PLIC {
	return &PLIC{
		lock:    spinlock.MkLock("plic"),
		enabled: make(map[[2]int]bool),
		pending: make([][]int, nharts),
	}
}

/// Enable marks irq as routed to hart, mirroring plicinithart's
/// per-hart S-mode enable bits.
func (p *PLIC) Enable(hart int, irq int) {
	p.lock.Acquire(hart)
	defer p.lock.Release(hart)
	p.enabled[[2]int{hart, irq}] = true
}

/// Raise marks irq pending for hart. A disabled source is dropped, the
/// same as a real PLIC never asserting an interrupt line the hart
/// hasn't been routed.
func (p *PLIC) Raise(hart int, irq int) {
	p.lock.Acquire(hart)
	defer p.lock.Release(hart)
	if !p.enabled[[2]int{hart, irq}] {
		return
	}
	p.pending[hart] = append(p.pending[hart], irq)
}

/// Claim returns the next pending interrupt for hart, implementing
/// trap.PLIC.
func (p *PLIC) Claim(hart int) (int, bool) {
	p.lock.Acquire(hart)
	defer p.lock.Release(hart)
	q := p.pending[hart]
	if len(q) == 0 {
		return 0, false
	}
	irq := q[0]
	p.pending[hart] = q[1:]
	return irq, true
}

/// Complete acknowledges irq, the real PLIC's signal that the hart is
/// ready to claim the next one. Since Claim already popped the queue,
/// there's nothing left to do beyond the hand back to hardware it
/// represents.
func (p *PLIC) Complete(hart int, irq int) {}
