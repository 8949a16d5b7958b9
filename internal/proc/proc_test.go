package proc

import (
	"testing"
	"time"

	"rvkernel/internal/defs"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/vmm"
)

func mkTestTable(npages int, body func(*Table, *Proc)) *Table {
	base := defs.Pa_t(defs.KERNBASE)
	ram := make([]byte, npages*defs.PGSIZE)
	mem := pgalloc.MkAllocator(ram, base, base, base+defs.Pa_t(npages*defs.PGSIZE))
	vm := vmm.New(mem)
	trampolinePA, ok := mem.Alloc(0)
	if !ok {
		panic("test: out of pages for trampoline")
	}
	return MkTable(vm, mem, trampolinePA, body)
}

var initcode = []byte{0x13, 0x00, 0x00, 0x00}

func TestUserinitProducesRunnableProc(t *testing.T) {
	tbl := mkTestTable(64, func(tb *Table, p *Proc) {})
	p := tbl.Userinit(initcode, 0)
	if p.State() != Runnable {
		t.Fatalf("state = %v, want Runnable", p.State())
	}
	if p.Pid() != 1 {
		t.Fatalf("pid = %d, want 1", p.Pid())
	}
}

func TestSchedulerRunsOneShotProcessToExit(t *testing.T) {
	exited := make(chan int)
	tbl := mkTestTable(64, func(tb *Table, p *Proc) {
		hart := p.runHart
		p.Lock.Acquire(hart)
		p.xstate = 7
		p.state = Zombie
		p.Lock.Release(hart)
		exited <- 7
		p.Lock.Acquire(hart)
		p.sched(hart)
	})
	tbl.Userinit(initcode, 0)

	// Scheduler never returns; it is only a vehicle to drive this one
	// process's body goroutine.
	go tbl.Scheduler(0)

	select {
	case status := <-exited:
		if status != 7 {
			t.Fatalf("exit status = %d, want 7", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("process body never ran")
	}
}

func TestForkReturnsChildPidAboveParent(t *testing.T) {
	tbl := mkTestTable(64, func(tb *Table, p *Proc) {})
	parent := tbl.Userinit(initcode, 0)
	pid, ok := tbl.Fork(parent, 0)
	if !ok {
		t.Fatal("Fork failed")
	}
	if pid <= parent.Pid() {
		t.Fatalf("child pid %d should exceed parent pid %d", pid, parent.Pid())
	}
}

func TestWakeupRequeuesSleepingProc(t *testing.T) {
	tbl := mkTestTable(64, func(tb *Table, p *Proc) {})
	p := tbl.Userinit(initcode, 0)

	p.Lock.Acquire(0)
	p.state = Sleeping
	p.chanwait = p
	p.Lock.Release(0)

	tbl.Wakeup(p, 0)

	if p.State() != Runnable {
		t.Fatalf("state after Wakeup = %v, want Runnable", p.State())
	}
}

func TestIdleHookFiresOnlyWhenNothingIsRunnable(t *testing.T) {
	tbl := mkTestTable(64, func(tb *Table, p *Proc) {
		// The process blocks immediately, leaving the table with no
		// Runnable process at all -- the one condition the idle hook
		// is meant to catch.
		p.Lock.Acquire(0)
		p.state = Sleeping
		p.chanwait = p
		p.Lock.Release(0)
		p.Lock.Acquire(0)
		p.sched(0)
	})
	tbl.Userinit(initcode, 0)

	fired := make(chan int, 1)
	tbl.SetIdleHook(func(hart int) {
		select {
		case fired <- hart:
		default:
		}
	})

	go tbl.Scheduler(0)

	select {
	case hart := <-fired:
		if hart != 0 {
			t.Fatalf("idle hook hart = %d, want 0", hart)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle hook never fired while the only process was blocked")
	}
}

func TestKillWakesSleepingProc(t *testing.T) {
	tbl := mkTestTable(64, func(tb *Table, p *Proc) {})
	p := tbl.Userinit(initcode, 0)
	p.Lock.Acquire(0)
	p.state = Sleeping
	p.Lock.Release(0)

	if !tbl.Kill(p.Pid(), 0) {
		t.Fatal("Kill reported not found")
	}
	if p.State() != Runnable {
		t.Fatalf("state after Kill = %v, want Runnable", p.State())
	}
	if !tbl.Killed(p, 0) {
		t.Fatal("Killed should report true")
	}
}
