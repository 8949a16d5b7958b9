package res

import "testing"

func TestResaddNoblockRespectsBudget(t *testing.T) {
	if !Resadd_noblock(Budget) {
		t.Fatal("reserving the full budget should succeed")
	}
	if Resadd_noblock(1) {
		t.Fatal("reserving past a full budget should fail")
	}
	Resremove(Budget)
	if Outstanding() != 0 {
		t.Fatalf("outstanding = %d, want 0", Outstanding())
	}
}

func TestResaddNoblockAllowsReuseAfterRemove(t *testing.T) {
	if !Resadd_noblock(10) {
		t.Fatal("reserve should succeed")
	}
	Resremove(10)
	if !Resadd_noblock(10) {
		t.Fatal("reserve should succeed again after release")
	}
	Resremove(10)
}
