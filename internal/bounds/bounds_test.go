package bounds

import "testing"

func TestBoundsReturnsPositiveCostForEveryKnownSite(t *testing.T) {
	for _, b := range []Bound{B_VMM_COPYOUT, B_VMM_COPYIN, B_VMM_COPYINSTR} {
		if Bounds(b) <= 0 {
			t.Errorf("Bounds(%v) = %d, want > 0", b, Bounds(b))
		}
	}
}
