package spinlock

import "testing"

func TestAcquireReleaseRoundTrip(t *testing.T) {
	lk := MkLock("test")
	lk.Acquire(0)
	if !lk.Holding(0) {
		t.Fatal("Holding(0) = false after Acquire")
	}
	if !Holdany(0) {
		t.Fatal("Holdany(0) = false while lock held")
	}
	if IntrGet(0) {
		t.Fatal("interrupts enabled while holding a spinlock")
	}
	lk.Release(0)
	if lk.Holding(0) {
		t.Fatal("Holding(0) = true after Release")
	}
	if Holdany(0) {
		t.Fatal("Holdany(0) = true after Release")
	}
	if !IntrGet(0) {
		t.Fatal("interrupts not restored after Release")
	}
}

func TestDoubleAcquirePanics(t *testing.T) {
	lk := MkLock("test")
	lk.Acquire(1)
	defer func() {
		lk.Release(1)
		if recover() == nil {
			t.Fatal("double acquire on same hart should panic")
		}
	}()
	lk.Acquire(1)
}

func TestReleaseWithoutHoldingPanics(t *testing.T) {
	lk := MkLock("test")
	defer func() {
		if recover() == nil {
			t.Fatal("release without holding should panic")
		}
	}()
	lk.Release(2)
}

func TestNestedPushOff(t *testing.T) {
	IntrOn(3)
	PushOff(3)
	PushOff(3)
	if IntrGet(3) {
		t.Fatal("interrupts enabled during nested push_off")
	}
	PopOff(3)
	if IntrGet(3) {
		t.Fatal("interrupts re-enabled before outermost pop_off")
	}
	PopOff(3)
	if !IntrGet(3) {
		t.Fatal("interrupts not restored after matching pop_off pair")
	}
}

func TestLockassertPanicsWhenNotHeld(t *testing.T) {
	lk := MkLock("test")
	defer func() {
		if recover() == nil {
			t.Fatal("Lockassert should panic when lock not held")
		}
	}()
	lk.Lockassert(4)
}
