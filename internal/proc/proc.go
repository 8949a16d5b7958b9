// Package proc implements the process table, process lifecycle, and the
// per-hart round-robin scheduler. Context switching has no real register
// file to save: each process runs on its own goroutine, and swtch becomes
// a rendezvous on a pair of channels between that goroutine and whichever
// hart's scheduler goroutine last picked it up -- the same role a real
// swtch plays, expressed in terms Go already has a primitive for.
package proc

import (
	"fmt"
	"io"
	"unsafe"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"rvkernel/internal/accnt"
	"rvkernel/internal/caller"
	"rvkernel/internal/defs"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/trapframe"
	"rvkernel/internal/vmm"
)

/// State mirrors the proc.h procstate enum exactly, in the same order,
/// so zero-valued procs come up UNUSED.
type State int

const (
	Unused State = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Sleeping:
		return "sleep "
	case Runnable:
		return "runble"
	case Running:
		return "run   "
	case Zombie:
		return "zombie"
	}
	return "???"
}

/// File is the interface the file-descriptor layer (fd.Fd_t) satisfies.
/// Proc only needs to duplicate and close descriptors across fork/exit;
/// it never interprets their contents.
type File interface {
	Dup() File
	Close()
}

/// Proc is one process-table slot. Fields are zero-valued to Unused/nil,
/// matching the C convention of a statically-allocated, all-zero array at
/// boot.
type Proc struct {
	Lock *spinlock.Lock_t

	state  State
	chanwait interface{}
	killed bool
	xstate int
	pid    int
	slot   int // index into Table.proc, stable for the slot's lifetime

	parent *Proc

	root defs.Pa_t // user page table
	sz   uintptr   // size of user memory, bytes

	tfPA defs.Pa_t
	tf   *trapframe.Trapframe

	ofile [defs.NOFILE]File
	cwd   interface{}
	name  [16]byte

	Acc *accnt.Accnt_t

	entry   func(*Table, *Proc)
	started bool
	runHart int
	resume  chan struct{}
	parked  chan struct{}
}

/// Pid returns the process's id, stable for its lifetime once allocated.
func (p *Proc) Pid() int { return p.pid }

/// State returns the current lifecycle state.
func (p *Proc) State() State { return p.state }

/// Trapframe returns the page backing the process's saved user registers.
func (p *Proc) Trapframe() *trapframe.Trapframe { return p.tf }

/// Root returns the physical address of the process's top-level page
/// table.
func (p *Proc) Root() defs.Pa_t { return p.root }

/// Slot returns the process's index into the process table, used to
/// locate its dedicated kernel stack address.
func (p *Proc) Slot() int { return p.slot }

/// RunHart returns the hart currently running this process. Valid only
/// while the process's own goroutine is executing between a resume and
/// its next park -- exactly the window an entry function like
/// trap.Dispatcher's callers or a process body runs in.
func (p *Proc) RunHart() int { return p.runHart }

/// Size returns the current size of user memory in bytes.
func (p *Proc) Size() uintptr { return p.sz }

/// SetName copies s into the fixed 16-byte name field, truncating as
/// needed, matching safestrcpy.
func (p *Proc) SetName(s string) {
	n := copy(p.name[:len(p.name)-1], s)
	p.name[n] = 0
}

/// Name returns the process's name, as set by SetName -- used by
/// Procdump and by diagnostics outside this package that need to report
/// which process something happened to.
func (p *Proc) Name() string { return p.nameString() }

func (p *Proc) nameString() string {
	n := 0
	for n < len(p.name) && p.name[n] != 0 {
		n++
	}
	return string(p.name[:n])
}

/// Cpu is one hart's scheduling state: which process, if any, it is
/// currently running.
type Cpu struct {
	proc *Proc
}

/// Proc returns the process currently running on this hart, or nil.
func (c *Cpu) Proc() *Proc { return c.proc }

/// Table is the whole process subsystem: the fixed-size process array,
/// one Cpu per hart, pid allocation, and the locks that order them.
type Table struct {
	proc [defs.NPROC]Proc
	cpus [defs.NCPU]Cpu

	pidLock  *spinlock.Lock_t
	waitLock *spinlock.Lock_t
	nextpid  int

	initproc *Proc

	vm  *vmm.Space
	mem *pgalloc.Allocator_t

	trampolinePA defs.Pa_t

	body func(*Table, *Proc)

	onIdle func(hart int)
}

/// SetIdleHook registers fn to run once per Scheduler iteration that
/// finds no Runnable process on hart, standing in for the original's
/// scheduler() spinning with interrupts enabled, waiting for a device
/// interrupt to land. It is the only safe place for code driven by an
/// external event source (a PLIC or timer) to touch hart-indexed state:
/// it always runs on the goroutine that currently owns hart, never
/// concurrently with that hart's running process.
func (t *Table) SetIdleHook(fn func(hart int)) { t.onIdle = fn }

/// MkTable allocates the process table. body is the function run on a
/// fresh goroutine the first time a process is scheduled -- the
/// forkret-and-beyond code path, normally wired up by the boot sequence
/// to usertrapret and the trap-dispatch loop. trampolinePA is the
/// physical page backing the trampoline, shared read-execute-mapped into
/// every process's page table.
func MkTable(vm *vmm.Space, mem *pgalloc.Allocator_t, trampolinePA defs.Pa_t, body func(*Table, *Proc)) *Table {
	t := &Table{
		pidLock:      spinlock.MkLock("nextpid"),
		waitLock:     spinlock.MkLock("wait_lock"),
		nextpid:      1,
		vm:           vm,
		mem:          mem,
		trampolinePA: trampolinePA,
		body:         body,
	}
	for i := range t.proc {
		t.proc[i].Lock = spinlock.MkLock("proc")
		t.proc[i].state = Unused
		t.proc[i].resume = make(chan struct{})
		t.proc[i].parked = make(chan struct{})
	}
	return t
}

/// Cpu returns the per-hart scheduling state for hart.
func (t *Table) Cpu(hart int) *Cpu { return &t.cpus[hart] }

/// Cur returns the process currently running on hart, the myproc()
/// equivalent for code that already knows which hart it is on.
func (t *Table) Cur(hart int) *Proc { return t.cpus[hart].proc }

func (t *Table) allocPid(hart int) int {
	t.pidLock.Acquire(hart)
	pid := t.nextpid
	t.nextpid++
	t.pidLock.Release(hart)
	return pid
}

/// allocProc scans for an Unused slot, assigns it a pid and a trapframe
/// page and user page table mapping just the trampoline and trapframe,
/// and returns it with its lock held -- exactly allocproc's contract.
func (t *Table) allocProc(hart int) (*Proc, bool) {
	var p *Proc
	for i := range t.proc {
		cand := &t.proc[i]
		cand.Lock.Acquire(hart)
		if cand.state == Unused {
			p = cand
			p.slot = i
			break
		}
		cand.Lock.Release(hart)
	}
	if p == nil {
		return nil, false
	}

	p.pid = t.allocPid(hart)
	p.state = Used

	tfPA, ok := t.mem.Alloc(hart)
	if !ok {
		t.freeProc(p, hart)
		p.Lock.Release(hart)
		return nil, false
	}
	p.tfPA = tfPA
	p.tf = (*trapframe.Trapframe)(unsafe.Pointer(&t.mem.Page(tfPA)[0]))
	*p.tf = trapframe.Trapframe{}

	root, ok := t.vm.MkPagetable(hart)
	if !ok {
		t.freeProc(p, hart)
		p.Lock.Release(hart)
		return nil, false
	}
	if err := t.vm.Map(root, defs.TRAMPOLINE, defs.PGSIZE, t.trampolinePA, defs.PTE_R|defs.PTE_X, hart); err != nil {
		t.vm.Freetree(root, hart)
		t.freeProc(p, hart)
		p.Lock.Release(hart)
		return nil, false
	}
	if err := t.vm.Map(root, defs.TRAPFRAME, defs.PGSIZE, tfPA, defs.PTE_R|defs.PTE_W, hart); err != nil {
		t.vm.Unmap(root, defs.TRAMPOLINE, 1, false, hart)
		t.vm.Freetree(root, hart)
		t.freeProc(p, hart)
		p.Lock.Release(hart)
		return nil, false
	}
	p.root = root
	p.Acc = &accnt.Accnt_t{}

	p.entry = t.body

	return p, true
}

/// freeProc releases a process's trapframe and page table, leaving the
/// slot Unused. p.Lock must be held.
func (t *Table) freeProc(p *Proc, hart int) {
	if p.tf != nil {
		t.mem.Free(p.tfPA, hart)
	}
	p.tf = nil
	p.tfPA = 0
	if p.root != 0 {
		t.vm.Unmap(p.root, defs.TRAMPOLINE, 1, false, hart)
		t.vm.Unmap(p.root, defs.TRAPFRAME, 1, false, hart)
		t.vm.Uvmfree(p.root, p.sz, hart)
	}
	p.root = 0
	p.sz = 0
	p.pid = 0
	p.parent = nil
	p.name = [16]byte{}
	p.chanwait = nil
	p.killed = false
	p.xstate = 0
	for i := range p.ofile {
		p.ofile[i] = nil
	}
	p.cwd = nil
	p.Acc = nil
	p.started = false
	p.state = Unused
}

/// Userinit allocates and installs the first process, pid 1, loading
/// initcode as its entire address space.
func (t *Table) Userinit(initcode []byte, hart int) *Proc {
	p, ok := t.allocProc(hart)
	if !ok {
		caller.KernelPanic("proc: userinit: allocproc failed")
	}
	t.initproc = p

	if err := t.vm.UvmFirst(p.root, initcode, hart); err != nil {
		caller.KernelPanic("proc: userinit: uvmfirst: " + err.Error())
	}
	p.sz = defs.PGSIZE

	p.tf.Epc = 0
	p.tf.Sp = defs.PGSIZE

	p.SetName("initcode")
	p.state = Runnable

	p.Lock.Release(hart)
	return p
}

/// Growproc grows or shrinks p's user memory by n bytes.
func (t *Table) Growproc(p *Proc, n int, hart int) bool {
	sz := p.sz
	switch {
	case n > 0:
		newsz, err := t.vm.Grow(p.root, sz, sz+uintptr(n), defs.PTE_W, hart)
		if err != nil {
			return false
		}
		sz = newsz
	case n < 0:
		sz = t.vm.Shrink(p.root, sz, sz-uintptr(-n), hart)
	}
	p.sz = sz
	return true
}

/// Fork creates a new process that is a copy of p: identical memory image,
/// duplicated file descriptors, and a0 forced to 0 in the child's saved
/// trapframe so fork appears to return 0 there.
func (t *Table) Fork(p *Proc, hart int) (int, bool) {
	np, ok := t.allocProc(hart)
	if !ok {
		return -1, false
	}

	if err := t.vm.Clone(p.root, np.root, p.sz, hart); err != nil {
		t.freeProc(np, hart)
		np.Lock.Release(hart)
		return -1, false
	}
	np.sz = p.sz

	*np.tf = *p.tf
	np.tf.A0 = 0

	for i := range p.ofile {
		if p.ofile[i] != nil {
			np.ofile[i] = p.ofile[i].Dup()
		}
	}
	np.cwd = p.cwd
	np.name = p.name

	pid := np.pid
	np.Lock.Release(hart)

	t.waitLock.Acquire(hart)
	np.parent = p
	t.waitLock.Release(hart)

	np.Lock.Acquire(hart)
	np.state = Runnable
	np.Lock.Release(hart)

	return pid, true
}

func (t *Table) reparent(p *Proc, hart int) {
	for i := range t.proc {
		pp := &t.proc[i]
		if pp.parent == p {
			pp.parent = t.initproc
			t.Wakeup(t.initproc, hart)
		}
	}
}

/// Exit tears down open files, hands any children to init, wakes a
/// waiting parent, marks the process a zombie, and parks it in the
/// scheduler forever. It never returns.
func (t *Table) Exit(p *Proc, status int, hart int) {
	if p == t.initproc {
		caller.KernelPanic("proc: init exiting")
	}

	for i := range p.ofile {
		if p.ofile[i] != nil {
			p.ofile[i].Close()
			p.ofile[i] = nil
		}
	}
	p.cwd = nil

	t.waitLock.Acquire(hart)
	t.reparent(p, hart)
	t.Wakeup(p.parent, hart)

	p.Lock.Acquire(hart)
	p.xstate = status
	p.state = Zombie

	t.waitLock.Release(hart)

	p.sched(hart)
	caller.KernelPanic("proc: zombie exit returned")
}

/// Wait blocks until a child of p exits, frees that child's slot, and
/// returns its pid and exit status. It returns ok=false if p has no
/// children or has been killed.
func (t *Table) Wait(p *Proc, hart int) (pid int, xstate int, ok bool) {
	t.waitLock.Acquire(hart)
	defer t.waitLock.Release(hart)

	for {
		havekids := false
		for i := range t.proc {
			pp := &t.proc[i]
			if pp.parent != p {
				continue
			}
			pp.Lock.Acquire(hart)
			havekids = true
			if pp.state == Zombie {
				pid = pp.pid
				xstate = pp.xstate
				t.freeProc(pp, hart)
				pp.Lock.Release(hart)
				return pid, xstate, true
			}
			pp.Lock.Release(hart)
		}
		if !havekids || t.Killed(p, hart) {
			return -1, 0, false
		}
		t.Sleep(p, p, t.waitLock, hart)
	}
}

/// sched performs the swtch-equivalent rendezvous: it hands control back
/// to whichever hart's scheduler goroutine is waiting on p.parked, then
/// blocks until that (or another) hart's scheduler resumes p again.
/// p.Lock must be held, held exactly once, and p must not be Running.
func (p *Proc) sched(hart int) {
	if !p.Lock.Holding(hart) {
		caller.KernelPanic("proc: sched p.Lock not held")
	}
	if p.state == Running {
		caller.KernelPanic("proc: sched running")
	}
	if spinlock.IntrGet(hart) {
		caller.KernelPanic("proc: sched interruptible")
	}
	p.parked <- struct{}{}
	<-p.resume
}

/// Yield gives up the hart for one scheduling round.
func (t *Table) Yield(p *Proc, hart int) {
	p.Lock.Acquire(hart)
	p.state = Runnable
	p.sched(hart)
	p.Lock.Release(hart)
}

/// Sleep atomically releases lk and blocks p until Wakeup(chanv) is
/// called, then reacquires lk before returning -- the double lock dance.
func (t *Table) Sleep(p *Proc, chanv interface{}, lk *spinlock.Lock_t, hart int) {
	p.Lock.Acquire(hart)
	lk.Release(hart)

	p.chanwait = chanv
	p.state = Sleeping

	p.sched(hart)

	p.chanwait = nil

	p.Lock.Release(hart)
	lk.Acquire(hart)
}

/// Wakeup moves every process sleeping on chanv to Runnable. Must be
/// called without holding any process's lock.
func (t *Table) Wakeup(chanv interface{}, hart int) {
	cur := t.Cur(hart)
	for i := range t.proc {
		p := &t.proc[i]
		if p == cur {
			continue
		}
		p.Lock.Acquire(hart)
		if p.state == Sleeping && p.chanwait == chanv {
			p.state = Runnable
		}
		p.Lock.Release(hart)
	}
}

/// Kill marks the process with the given pid for death and, if it is
/// sleeping, wakes it so it notices on its way back to user space.
func (t *Table) Kill(pid int, hart int) bool {
	for i := range t.proc {
		p := &t.proc[i]
		p.Lock.Acquire(hart)
		if p.pid == pid {
			p.killed = true
			if p.state == Sleeping {
				p.state = Runnable
			}
			p.Lock.Release(hart)
			return true
		}
		p.Lock.Release(hart)
	}
	return false
}

/// SetKilled marks p for death directly.
func (t *Table) SetKilled(p *Proc, hart int) {
	p.Lock.Acquire(hart)
	p.killed = true
	p.Lock.Release(hart)
}

/// Killed reports whether p has been marked for death.
func (t *Table) Killed(p *Proc, hart int) bool {
	p.Lock.Acquire(hart)
	k := p.killed
	p.Lock.Release(hart)
	return k
}

/// Procdump writes a one-line-per-process listing to w: pid, state, name.
/// Runs with no lock held, matching the original's "don't wedge an
/// already-stuck machine further" rationale; callers expect it only from
/// a debug console interrupt.
func (t *Table) Procdump(w io.Writer) {
	p := message.NewPrinter(language.English)
	fmt.Fprintln(w)
	for i := range t.proc {
		pp := &t.proc[i]
		if pp.state == Unused {
			continue
		}
		p.Fprintf(w, "%d %s %s\n", pp.pid, pp.state, pp.nameString())
	}
}
