package plic

import "testing"

func TestClaimReturnsFalseWhenEmpty(t *testing.T) {
	p := New(1)
	if _, ok := p.Claim(0); ok {
		t.Fatal("claim on empty queue should fail")
	}
}

func TestDisabledSourceNeverBecomesPending(t *testing.T) {
	p := New(1)
	p.Raise(0, 10)
	if _, ok := p.Claim(0); ok {
		t.Fatal("disabled source should not be claimable")
	}
}

func TestEnabledSourceClaimedInOrder(t *testing.T) {
	p := New(1)
	p.Enable(0, 10)
	p.Enable(0, 1)
	p.Raise(0, 10)
	p.Raise(0, 1)

	irq, ok := p.Claim(0)
	if !ok || irq != 10 {
		t.Fatalf("first claim = (%d, %v), want (10, true)", irq, ok)
	}
	irq, ok = p.Claim(0)
	if !ok || irq != 1 {
		t.Fatalf("second claim = (%d, %v), want (1, true)", irq, ok)
	}
	if _, ok := p.Claim(0); ok {
		t.Fatal("queue should now be empty")
	}
}

func TestHartsHaveIndependentQueues(t *testing.T) {
	p := New(2)
	p.Enable(0, 10)
	p.Enable(1, 10)
	p.Raise(0, 10)

	if _, ok := p.Claim(1); ok {
		t.Fatal("hart 1 should have no pending interrupt")
	}
	if irq, ok := p.Claim(0); !ok || irq != 10 {
		t.Fatalf("hart 0 claim = (%d, %v), want (10, true)", irq, ok)
	}
}
