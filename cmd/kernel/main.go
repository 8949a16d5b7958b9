// Command kernel boots the simulator: it builds the physical allocator,
// address-space manager, process table, and device stack, then hands
// every hart to the scheduler. It never returns on success.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"rvkernel/internal/boot"
	"rvkernel/internal/console"
	"rvkernel/internal/defs"
	"rvkernel/internal/klog"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/plic"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/syscall"
	"rvkernel/internal/timer"
	"rvkernel/internal/trap"
	"rvkernel/internal/uart"
	"rvkernel/internal/vmm"
)

func main() {
	harts := flag.Int("harts", 1, "number of harts to bring up")
	pages := flag.Int("ram-pages", 4096, "physical pages available to the allocator")
	level := flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*harts, *pages, *level); err != nil {
		fmt.Fprintln(os.Stderr, "kernel:", err)
		os.Exit(1)
	}
	select {} // harts run forever in the scheduler; main has nothing left to do
}

func run(harts, pages int, level string) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	klog.LevelVar.Set(lv)

	base := defs.Pa_t(defs.KERNBASE)
	ram := make([]byte, pages*defs.PGSIZE)
	mem := pgalloc.MkAllocator(ram, base, base, base+defs.Pa_t(pages*defs.PGSIZE))
	vm := vmm.New(mem)

	trampolinePA, ok := mem.Alloc(0)
	if !ok {
		return fmt.Errorf("out of pages allocating the trampoline")
	}

	var tbl *proc.Table
	sys := syscall.MkTable()
	pl := plic.New(harts)
	pl.Enable(0, defs.UART0IRQ)

	// pid 1 is always the init process; like the original, init must
	// never exit, so its entry point idles rather than calling Exit.
	tbl = proc.MkTable(vm, mem, trampolinePA, func(t *proc.Table, p *proc.Proc) {
		klog.Hart(p.RunHart()).Info("process started", "pid", p.Pid(), "state", p.State())
		for {
			t.Yield(p, p.RunHart())
		}
	})

	u := uart.New(tbl, &loopbackBackend{}, nil)
	cons := console.New(tbl,
		func(c byte) { u.PutCharSync(0, c) },
		func(p *proc.Proc, hart int, c byte) { u.PutChar(p, hart, c) },
		func() { tbl.Procdump(os.Stdout) },
	)
	u.SetConsole(cons)

	dispatcher := trap.MkDispatcher(tbl, vm, sys, pl, u, nil)

	// timer.Source runs on its own goroutine per hart, outside the
	// single-goroutine-per-hart discipline every other hart-indexed
	// piece of state in this kernel depends on; its sink only ever
	// increments a counter, never touches spinlock or process state
	// directly. Table.Scheduler's idle hook is the one place that state
	// is safe to touch from code an external event triggered, because
	// it always runs on the goroutine currently acting as that hart --
	// the same place a real hart would notice a pending interrupt while
	// parked in wfi.
	pendingTimer := make([]int32, harts)
	tbl.SetIdleHook(func(hart int) {
		spinlock.IntrOff(hart)
		dispatcher.KernelTrap(hart, trap.CauseExternalIntr)
		if atomic.SwapInt32(&pendingTimer[hart], 0) > 0 {
			dispatcher.KernelTrap(hart, timer.CauseTimerIntr)
		}
		spinlock.IntrOn(hart)
	})

	klog.L().Info("kernel is booting", "harts", harts, "ram_pages", pages)

	seq := &boot.Sequence{
		Init: func() {
			klog.L().Info("hart 0 init complete")
			tbl.Userinit([]byte{0x13, 0x00, 0x00, 0x00}, 0)
			timer.Start(0, func(hart int, _ uint64) { atomic.AddInt32(&pendingTimer[hart], 1) })
		},
		PerHart: func(hart int) {
			klog.Hart(hart).Info("hart starting")
			timer.Start(hart, func(hart int, _ uint64) { atomic.AddInt32(&pendingTimer[hart], 1) })
		},
	}
	seq.Run(harts, tbl.Scheduler)
	return nil
}

/// loopbackBackend is a minimal uart.Backend with no real wire behind
/// it: every byte written is immediately ready to transmit again, and
/// nothing is ever received. It exists so the binary boots without a
/// real terminal attached; cmd/consoledemo supplies a host-terminal
/// backend instead.
type loopbackBackend struct{}

func (loopbackBackend) TxReady() bool { return true }
func (loopbackBackend) Tx(byte)       {}
func (loopbackBackend) RxReady() bool { return false }
func (loopbackBackend) Rx() byte      { return 0 }
