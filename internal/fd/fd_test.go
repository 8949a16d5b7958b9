package fd

import (
	"errors"
	"testing"

	"rvkernel/internal/proc"
	"rvkernel/internal/ustr"
)

type fakeFops struct {
	reopenErr error
	reopened  int
	closed    int
}

func (f *fakeFops) Read(*proc.Proc, int, []byte) (int, error)  { return 0, nil }
func (f *fakeFops) Write(*proc.Proc, int, []byte) (int, error) { return 0, nil }
func (f *fakeFops) Reopen() error                              { f.reopened++; return f.reopenErr }
func (f *fakeFops) Close() error                               { f.closed++; return nil }

func TestCopyfdReopensUnderlyingFops(t *testing.T) {
	ops := &fakeFops{}
	orig := &Fd_t{Fops: ops, Perms: FD_READ}

	dup, err := Copyfd(orig)

	if err != nil {
		t.Fatalf("Copyfd: %v", err)
	}
	if dup.Perms != FD_READ {
		t.Fatalf("dup.Perms = %d, want FD_READ", dup.Perms)
	}
	if ops.reopened != 1 {
		t.Fatalf("reopened = %d, want 1", ops.reopened)
	}
}

func TestCopyfdPropagatesReopenError(t *testing.T) {
	ops := &fakeFops{reopenErr: errors.New("boom")}
	orig := &Fd_t{Fops: ops}

	if _, err := Copyfd(orig); err == nil {
		t.Fatal("expected Copyfd to propagate the Reopen error")
	}
}

func TestDupPanicsOnReopenFailure(t *testing.T) {
	ops := &fakeFops{reopenErr: errors.New("boom")}
	orig := &Fd_t{Fops: ops}

	defer func() {
		if recover() == nil {
			t.Fatal("expected Dup to panic")
		}
	}()
	orig.Dup()
}

func TestCloseCallsFopsClose(t *testing.T) {
	ops := &fakeFops{}
	f := &Fd_t{Fops: ops}
	f.Close()
	if ops.closed != 1 {
		t.Fatalf("closed = %d, want 1", ops.closed)
	}
}

func TestCwdFullpathAndCanonicalpath(t *testing.T) {
	cwd := MkRootCwd(nil)
	cwd.Path = ustr.Ustr("/a/b")

	if got := cwd.Fullpath(ustr.Ustr("/x")); got.String() != "/x" {
		t.Fatalf("absolute path passthrough = %q, want %q", got, "/x")
	}
	if got := cwd.Fullpath(ustr.Ustr("c")); got.String() != "/a/b/c" {
		t.Fatalf("relative join = %q, want %q", got, "/a/b/c")
	}
	if got := cwd.Canonicalpath(ustr.Ustr("../x")); got.String() != "/a/x" {
		t.Fatalf("canonicalized = %q, want %q", got, "/a/x")
	}
}
