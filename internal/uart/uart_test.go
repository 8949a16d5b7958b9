package uart

import (
	"testing"
	"time"

	"rvkernel/internal/defs"
	"rvkernel/internal/pgalloc"
	"rvkernel/internal/proc"
	"rvkernel/internal/vmm"
)

type fakeBackend struct {
	tx      []byte
	txReady bool
	rx      []byte
}

func (f *fakeBackend) TxReady() bool { return f.txReady }
func (f *fakeBackend) Tx(b byte)     { f.tx = append(f.tx, b) }
func (f *fakeBackend) RxReady() bool { return len(f.rx) > 0 }
func (f *fakeBackend) Rx() byte {
	b := f.rx[0]
	f.rx = f.rx[1:]
	return b
}

type fakeConsole struct{ got []byte }

func (c *fakeConsole) Intr(b byte) { c.got = append(c.got, b) }

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

func TestPutCharSyncSpinsUntilReady(t *testing.T) {
	be := &fakeBackend{}
	tbl, _ := mkTestTable(32)
	u := New(tbl, be, nil)

	done := make(chan struct{})
	go func() {
		u.PutCharSync(0, 'x')
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("PutCharSync returned before backend became ready")
	case <-time.After(20 * time.Millisecond):
	}

	be.txReady = true
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PutCharSync never returned once backend was ready")
	}
	if len(be.tx) != 1 || be.tx[0] != 'x' {
		t.Fatalf("tx = %v, want ['x']", be.tx)
	}
}

func TestPutCharDrainsWhenBackendReady(t *testing.T) {
	be := &fakeBackend{txReady: true}
	tbl, p := mkTestTable(32)
	u := New(tbl, be, nil)

	u.PutChar(p, 0, 'a')
	u.PutChar(p, 0, 'b')

	if string(be.tx) != "ab" {
		t.Fatalf("tx = %q, want %q", be.tx, "ab")
	}
}

func TestInterruptDeliversReceivedBytesToConsole(t *testing.T) {
	be := &fakeBackend{rx: []byte("hi")}
	cons := &fakeConsole{}
	tbl, _ := mkTestTable(32)
	u := New(tbl, be, cons)

	u.Interrupt(0)

	if string(cons.got) != "hi" {
		t.Fatalf("console got %q, want %q", cons.got, "hi")
	}
}
