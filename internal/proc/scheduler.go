package proc

import "rvkernel/internal/spinlock"

/// Scheduler is the per-hart scheduling loop: each hart calls this after
/// its own setup and never returns. It scans the process table
/// round-robin, and for every Runnable process, resumes its goroutine
/// (launching one on first use) and blocks until that process parks
/// itself back via Yield, Sleep, or Exit.
func (t *Table) Scheduler(hart int) {
	c := t.Cpu(hart)
	c.proc = nil

	for {
		spinlock.IntrOn(hart)

		found := false
		for i := range t.proc {
			p := &t.proc[i]
			p.Lock.Acquire(hart)
			if p.state == Runnable {
				p.state = Running
				c.proc = p
				p.runHart = hart

				if !p.started {
					p.started = true
					go t.runproc(p)
				}

				p.resume <- struct{}{}
				<-p.parked

				c.proc = nil
				found = true
			}
			p.Lock.Release(hart)
		}

		if !found {
			spinlock.IntrOn(hart)
			if t.onIdle != nil {
				t.onIdle(hart)
			}
		}
	}
}

/// runproc is the goroutine body standing in for a process's kernel
/// stack: it waits for its first resume, releases the lock the scheduler
/// handed it across (the forkret half of the handshake), then runs the
/// table's configured entry point for the rest of the process's life.
func (t *Table) runproc(p *Proc) {
	<-p.resume
	hart := p.runHart
	p.Lock.Release(hart)

	if p.entry != nil {
		p.entry(t, p)
	}
	panic("proc: process entry function returned")
}
