// Package timer generates the periodic timer interrupts that force a
// running process to give up the hart, the mechanism round-robin
// scheduling depends on. The real kernel programs stimecmp directly off
// the RISC-V time CSR; there is no CSR here, so a host-clock ticker
// plays the same role.
package timer

import "time"

/// Interval is the simulated period between timer interrupts, chosen to
/// keep test and demo runs responsive; the real kernel's default
/// (roughly a tenth of a second at typical clock rates) would make
/// little sense against a host wall clock.
const Interval = 10 * time.Millisecond

/// Sink receives a timer interrupt on the given hart. It runs on this
/// package's own goroutine, independent of whichever goroutine is
/// currently acting as that hart, so it must not touch hart-indexed
/// state directly -- ordinarily it just records that a timer interrupt
/// is pending (an atomic counter) for a Table's idle hook to notice and
/// deliver via trap.Dispatcher.KernelTrap on the hart's own goroutine.
type Sink func(hart int, scause uint64)

/// CauseTimerIntr mirrors trap.CauseTimerIntr; duplicated here rather
/// than imported to keep this package independent of the trap package
/// it feeds (it is equally usable to drive a test double).
const CauseTimerIntr uint64 = 0x8000000000000005

/// Source drives one hart's timer interrupts on a fixed host-clock
/// interval until stopped.
type Source struct {
	hart   int
	ticker *time.Ticker
	done   chan struct{}
}

/// Start begins delivering timer interrupts for hart to sink every
/// Interval, on their own goroutine, until Stop is called.
func Start(hart int, sink Sink) *Source {
	s := &Source{
		hart:   hart,
		ticker: time.NewTicker(Interval),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-s.ticker.C:
				sink(s.hart, CauseTimerIntr)
			case <-s.done:
				return
			}
		}
	}()
	return s
}

/// Stop halts interrupt delivery for this source. Safe to call once.
func (s *Source) Stop() {
	s.ticker.Stop()
	close(s.done)
}
