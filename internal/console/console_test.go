package console

import (
	"testing"
	"time"

	"rvkernel/internal/defs"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/proc"
	"rvkernel/internal/vmm"
)

func mkTestTable(npages int) (*proc.Table, *proc.Proc) {
	base := defs.Pa_t(defs.KERNBASE)
	ram := make([]byte, npages*defs.PGSIZE)
	mem := pgalloc.MkAllocator(ram, base, base, base+defs.Pa_t(npages*defs.PGSIZE))
	vm := vmm.New(mem)
	trampolinePA, _ := mem.Alloc(0)
	tbl := proc.MkTable(vm, mem, trampolinePA, func(*proc.Table, *proc.Proc) {})
	p := tbl.Userinit([]byte{0x13, 0x00, 0x00, 0x00}, 0)
	return tbl, p
}

func TestIntrEchoesAndReadReturnsFullLine(t *testing.T) {
	tbl, p := mkTestTable(32)
	var echoed []byte
	c := New(tbl, func(b byte) { echoed = append(echoed, b) }, nil, nil)

	done := make(chan int, 1)
	go func() {
		buf := make([]byte, 16)
		done <- c.Read(p, 0, buf)
	}()

	time.Sleep(10 * time.Millisecond)
	for _, b := range []byte("hi\n") {
		c.Intr(b)
	}

	select {
	case n := <-done:
		if n != 3 {
			t.Fatalf("Read returned %d, want 3", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Read never woke up")
	}
	if string(echoed) != "hi\n" {
		t.Fatalf("echoed = %q, want %q", echoed, "hi\n")
	}
}

func TestBackspaceErasesLastChar(t *testing.T) {
	tbl, _ := mkTestTable(32)
	var echoed []byte
	c := New(tbl, func(b byte) { echoed = append(echoed, b) }, nil, nil)

	c.Intr('a')
	c.Intr('b')
	c.Intr(controlKey('H'))

	if c.e != c.w+1 {
		t.Fatalf("e-w = %d, want 1", c.e-c.w)
	}
	if c.buf[c.r] != 'a' {
		t.Fatalf("remaining buffered char = %q, want 'a'", c.buf[c.r])
	}
}

func TestControlPInvokesDumper(t *testing.T) {
	tbl, _ := mkTestTable(32)
	dumped := false
	c := New(tbl, func(byte) {}, nil, func() { dumped = true })

	c.Intr(controlKey('P'))

	if !dumped {
		t.Fatal("^P should invoke the dumper")
	}
}

func TestFileWriteForwardsThroughBufferedWriter(t *testing.T) {
	tbl, p := mkTestTable(32)
	var sent []byte
	c := New(tbl, func(byte) {}, func(pp *proc.Proc, hart int, b byte) { sent = append(sent, b) }, nil)

	n, err := c.File().Write(p, 0, []byte("ok"))

	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 2 || string(sent) != "ok" {
		t.Fatalf("n=%d sent=%q, want 2, \"ok\"", n, sent)
	}
}
