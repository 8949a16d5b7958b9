package timer

import (
	"testing"
	"time"
)

func TestSourceDeliversTicksUntilStopped(t *testing.T) {
	ticks := make(chan uint64, 8)
	s := Start(0, func(hart int, scause uint64) {
		if hart != 0 {
			t.Errorf("hart = %d, want 0", hart)
		}
		ticks <- scause
	})
	defer s.Stop()

	select {
	case scause := <-ticks:
		if scause != CauseTimerIntr {
			t.Fatalf("scause = %#x, want %#x", scause, CauseTimerIntr)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick delivered")
	}
}
