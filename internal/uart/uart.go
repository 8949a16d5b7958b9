// Package uart models the 16550a serial chip: a synchronous byte-at-a-
// time path for boot messages and panics, and an interrupt-driven,
// buffered path for ordinary console output. There is no physical UART
// to memory-map here, so the hardware side is reduced to a Backend the
// caller supplies -- in the simulator, a loopback or a host terminal; in
// tests, a fake that records writes.
package uart

import (
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

/// Backend is the minimum a 16550a-alike needs to expose: can it accept
/// another byte to transmit, and is a received byte waiting.
type Backend interface {
	TxReady() bool
	Tx(b byte)
	RxReady() bool
	Rx() byte
}

/// Console is the bottom half's destination for received bytes --
/// satisfied by internal/console.
type Console interface {
	Intr(c byte)
}

const transmitBufSize = 32

/// UART buffers output for uart_put_char's blocking, interrupt-driven
/// path and exposes uartputc_sync's direct, spinning path for printf and
/// panic output that must reach the wire even with interrupts off.
type UART struct {
	lock *spinlock.Lock_t
	tbl  *proc.Table

	backend Backend
	console Console

	buf        [transmitBufSize]byte
	writeIndex uint64
	readIndex  uint64

	panicked bool
}

/// New builds a UART driving backend and delivering received bytes to
/// console.
func New(tbl *proc.Table, backend Backend, console Console) *UART {
	return &UART{
		lock:    spinlock.MkLock("uart"),
		tbl:     tbl,
		backend: backend,
		console: console,
	}
}

/// SetConsole attaches the line discipline that receives bytes read off
/// the backend -- split from New because the console and the UART that
/// feeds it are usually constructed in a cycle (the console also needs
/// a way to write back through this UART).
func (u *UART) SetConsole(console Console) { u.console = console }

/// Panicked marks the UART as having seen a kernel panic: PutChar spins
/// forever rather than risk corrupting the panic message already in
/// flight.
func (u *UART) Panicked() { u.panicked = true }

/// PutChar queues a byte for transmission, blocking the calling process
/// if the transmit buffer is full. Unsafe to call from interrupt
/// context, matching uart_put_char.
func (u *UART) PutChar(p *proc.Proc, hart int, c byte) {
	u.lock.Acquire(hart)
	defer u.lock.Release(hart)

	if u.panicked {
		select {}
	}
	for u.writeIndex == u.readIndex+transmitBufSize {
		u.tbl.Sleep(p, &u.readIndex, u.lock, hart)
	}
	u.buf[u.writeIndex%transmitBufSize] = c
	u.writeIndex++
	u.start(hart)
}

/// PutCharSync writes c directly to the backend, spinning until it is
/// ready. Safe with interrupts disabled; used for boot and panic output
/// that must not depend on the interrupt-driven path.
func (u *UART) PutCharSync(hart int, c byte) {
	wasOn := spinlock.IntrGet(hart)
	spinlock.IntrOff(hart)
	defer func() {
		if wasOn {
			spinlock.IntrOn(hart)
		}
	}()

	if u.panicked {
		select {}
	}
	for !u.backend.TxReady() {
	}
	u.backend.Tx(c)
}

/// start drains the transmit buffer into the backend until it runs dry
/// or the backend can't accept another byte yet. u.lock must be held.
func (u *UART) start(hart int) {
	for {
		if u.writeIndex == u.readIndex {
			return
		}
		if !u.backend.TxReady() {
			return
		}
		c := u.buf[u.readIndex%transmitBufSize]
		u.readIndex++
		u.tbl.Wakeup(&u.readIndex, hart)
		u.backend.Tx(c)
	}
}

/// Interrupt services a pending UART interrupt: drains every waiting
/// received byte to the console, then resumes transmission. Implements
/// trap.IRQHandler.
func (u *UART) Interrupt(hart int) {
	for u.backend.RxReady() {
		c := u.backend.Rx()
		if u.console != nil {
			u.console.Intr(c)
		}
	}

	u.lock.Acquire(hart)
	u.start(hart)
	u.lock.Release(hart)
}
