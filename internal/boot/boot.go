// Package boot sequences hart bringup: hart 0 runs the one-time
// subsystem initialization while every other hart spins, then all harts
// converge on the scheduler loop. The original expresses the barrier as
// a polled `started` flag; a closed channel gives every other hart the
// same "wait, then proceed" semantics without a busy loop.
package boot

/// Sequence holds the two halves of bringup: Init runs once, entirely on
/// hart 0, after which every hart (hart 0 included) is expected to
/// already be ready to schedule; PerHart runs on every hart other than
/// 0, to install the per-hart state hart 0 set up for itself inline
/// during Init (enabling paging, installing the trap vector, enabling
/// device interrupts for that hart).
type Sequence struct {
	Init    func()
	PerHart func(hart int)
}

/// Run brings up nharts harts and hands each one to scheduler, which
/// never returns -- matching main()'s "all cpus end up here running the
/// scheduler" contract. Run itself blocks until Init has finished, then
/// returns; the hart goroutines go on to reach their schedulers and keep
/// running after it does.
func (s *Sequence) Run(nharts int, scheduler func(hart int)) {
	ready := make(chan struct{})

	go func() {
		if s.Init != nil {
			s.Init()
		}
		close(ready)
		go scheduler(0)
	}()

	for hart := 1; hart < nharts; hart++ {
		hart := hart
		go func() {
			<-ready
			if s.PerHart != nil {
				s.PerHart(hart)
			}
			scheduler(hart)
		}()
	}

	<-ready
}
