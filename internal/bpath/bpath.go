// Package bpath resolves "." and ".." components out of a path string,
// the purely lexical half of path lookup. The other half -- following
// each remaining component through the directory tree -- belongs to
// the inode/directory layer this kernel doesn't implement; bpath only
// produces the canonical string that layer would walk.
package bpath

import "rvkernel/internal/ustr"

/// Canonicalize resolves "." and ".." components of p against its own
/// leading components (not the filesystem), returning a new absolute
/// path. A ".." at the root stays at the root, the same as the shell's
/// and namei's convention.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	stack := make([]ustr.Ustr, 0, 8)
	for _, c := range split(p) {
		switch {
		case c.Isdot() || len(c) == 0:
			continue
		case c.Isdotdot():
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, c)
		}
	}

	if len(stack) == 0 {
		return ustr.MkUstrRoot()
	}
	out := make(ustr.Ustr, 0, len(p))
	for _, c := range stack {
		out = append(out, '/')
		out = append(out, c...)
	}
	return out
}

/// split breaks p into its '/'-delimited components, dropping empty
/// components produced by leading, trailing, or doubled slashes.
func split(p ustr.Ustr) []ustr.Ustr {
	var parts []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
