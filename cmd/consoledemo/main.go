// Command consoledemo bridges the console/uart stack to a real host
// terminal: keystrokes on the controlling tty become simulated UART
// receive interrupts, and a single demo process echoes each line it
// reads back out through the buffered write path. It exists to exercise
// internal/uart and internal/console against something other than a
// fake backend.
package main

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/term"

	"rvkernel/internal/console"
	"rvkernel/internal/defs"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/proc"
	"rvkernel/internal/uart"
	"rvkernel/internal/vmm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "consoledemo:", err)
		os.Exit(1)
	}
}

func run() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	saved, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("putting terminal in raw mode: %w", err)
	}
	defer term.Restore(fd, saved)

	const pages = 256
	base := defs.Pa_t(defs.KERNBASE)
	ram := make([]byte, pages*defs.PGSIZE)
	mem := pgalloc.MkAllocator(ram, base, base, base+defs.Pa_t(pages*defs.PGSIZE))
	vm := vmm.New(mem)

	trampolinePA, ok := mem.Alloc(0)
	if !ok {
		return fmt.Errorf("out of pages allocating the trampoline")
	}

	var tbl *proc.Table
	var cons *console.Console
	tbl = proc.MkTable(vm, mem, trampolinePA, func(t *proc.Table, p *proc.Proc) {
		echoBody(t, p, cons)
	})

	backend := &hostBackend{out: os.Stdout}
	u := uart.New(tbl, backend, nil)
	cons = console.New(tbl,
		func(c byte) { u.PutCharSync(0, c) },
		func(p *proc.Proc, hart int, c byte) { u.PutChar(p, hart, c) },
		func() { tbl.Procdump(os.Stderr) },
	)
	u.SetConsole(cons)

	// Stdin is read on its own goroutine, completely independent of
	// hart 0's scheduler goroutine; the only thing it touches is
	// backend's mutex-guarded queue. Draining that queue into the UART
	// is left to hart 0's idle hook below, so u.Interrupt only ever
	// runs on the goroutine that actually owns hart 0 -- the same
	// discipline Table.Sleep/Wakeup already enforce for process state.
	tbl.SetIdleHook(func(hart int) { u.Interrupt(hart) })

	fmt.Fprintln(os.Stderr, "consoledemo: type a line, ^D to exit, ^P to dump the process table")

	tbl.Userinit([]byte{0x13, 0x00, 0x00, 0x00}, 0)
	go tbl.Scheduler(0)

	pumpStdin(os.Stdin, backend)
	return nil
}

// pumpStdin reads raw bytes off in and queues each one on backend, the
// way a real PLIC would latch a pending UART receive interrupt before
// the owning hart claims it. It returns after queueing a ^D or on a read
// error. It never touches the UART or console directly -- that happens
// on hart 0's own goroutine via the idle hook.
func pumpStdin(in *os.File, backend *hostBackend) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			backend.queue(buf[0])
			if buf[0] == 0x04 { // ^D: the user asked to exit
				return
			}
		}
		if err != nil {
			backend.queue(0x04) // ^D: end of input
			return
		}
	}
}

// echoBody is the demo process's entry point: it behaves like a trivial
// shell that reads one line at a time from the console and writes it
// straight back. It is pid 1, so like the original's init it must never
// exit; past end-of-file it just idles.
func echoBody(t *proc.Table, p *proc.Proc, c *console.Console) {
	buf := make([]byte, 128)
	for {
		hart := p.RunHart()
		n := c.Read(p, hart, buf)
		if n <= 0 {
			break
		}
		c.Write(p, hart, buf[:n])
	}
	for {
		t.Yield(p, p.RunHart())
	}
}

// hostBackend adapts a host terminal to uart.Backend: transmission goes
// straight to the terminal's output stream. Received bytes are queued
// by pumpStdin's own goroutine and drained by hart 0's idle hook, two
// different goroutines, so the queue itself needs its own lock --
// unlike everything else in this binary, which is safe precisely
// because only one goroutine ever acts as a given hart at a time.
type hostBackend struct {
	out *os.File

	mu sync.Mutex
	rx []byte
}

func (b *hostBackend) queue(c byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rx = append(b.rx, c)
}

func (b *hostBackend) TxReady() bool { return true }

func (b *hostBackend) Tx(c byte) {
	if c == '\n' {
		b.out.Write([]byte{'\r', '\n'})
		return
	}
	b.out.Write([]byte{c})
}

func (b *hostBackend) RxReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rx) > 0
}

func (b *hostBackend) Rx() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.rx[0]
	b.rx = b.rx[1:]
	return c
}
