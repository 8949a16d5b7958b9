package bpath

import (
	"testing"

	"rvkernel/internal/ustr"
)

func TestCanonicalizeCollapsesDotAndDoubleSlash(t *testing.T) {
	got := Canonicalize(ustr.Ustr("/a/./b//c"))
	if got.String() != "/a/b/c" {
		t.Fatalf("got %q, want %q", got, "/a/b/c")
	}
}

func TestCanonicalizeResolvesDotDot(t *testing.T) {
	got := Canonicalize(ustr.Ustr("/a/b/../c"))
	if got.String() != "/a/c" {
		t.Fatalf("got %q, want %q", got, "/a/c")
	}
}

func TestCanonicalizeDotDotAtRootStaysAtRoot(t *testing.T) {
	got := Canonicalize(ustr.Ustr("/../../a"))
	if got.String() != "/a" {
		t.Fatalf("got %q, want %q", got, "/a")
	}
}

func TestCanonicalizeEmptyPathIsRoot(t *testing.T) {
	got := Canonicalize(ustr.Ustr(""))
	if got.String() != "/" {
		t.Fatalf("got %q, want %q", got, "/")
	}
}
