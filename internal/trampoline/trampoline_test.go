package trampoline

import (
	"testing"

	"rvkernel/internal/trapframe"
)

type fakeCPU struct {
	pc   uint64
	regs trapframe.Trapframe
}

func (f *fakeCPU) SaveTrapframe(tf *trapframe.Trapframe)    { tf.A0, tf.A7 = f.regs.A0, f.regs.A7 }
func (f *fakeCPU) RestoreTrapframe(tf *trapframe.Trapframe) { f.regs.A0, f.regs.A7 = tf.A0, tf.A7 }
func (f *fakeCPU) SetPC(pc uint64)                          { f.pc = pc }
func (f *fakeCPU) PC() uint64                                { return f.pc }

func TestUservecSavesPCAndRegisters(t *testing.T) {
	cpu := &fakeCPU{pc: 0x1000}
	cpu.regs.A7 = 7 // SYS_exec-ish syscall number
	cpu.regs.A0 = 42

	var tf trapframe.Trapframe
	tf.KernelTrap = 0xdead
	tf.KernelSp = 0xbeef

	kt, ks := Uservec(cpu, &tf)
	if kt != 0xdead || ks != 0xbeef {
		t.Fatalf("Uservec returned %#x,%#x want 0xdead,0xbeef", kt, ks)
	}
	if tf.Epc != 0x1000 {
		t.Fatalf("Epc = %#x, want 0x1000", tf.Epc)
	}
	if tf.A7 != 7 || tf.A0 != 42 {
		t.Fatalf("saved a7=%d a0=%d, want 7,42", tf.A7, tf.A0)
	}
}

func TestUserretRestoresRegistersAndPC(t *testing.T) {
	cpu := &fakeCPU{}
	var tf trapframe.Trapframe
	tf.Epc = 0x2000
	tf.A0 = 99

	Userret(cpu, &tf)

	if cpu.pc != 0x2000 {
		t.Fatalf("pc = %#x, want 0x2000", cpu.pc)
	}
	if cpu.regs.A0 != 99 {
		t.Fatalf("a0 = %d, want 99", cpu.regs.A0)
	}
}
