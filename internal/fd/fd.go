// Package fd implements the open-file-descriptor table entry and the
// per-process current-working-directory state built on top of it.
package fd

import (
	"sync"

	"rvkernel/internal/bpath"
	"rvkernel/internal/fdops"
	"rvkernel/internal/proc"
	"rvkernel/internal/ustr"
)

/// File descriptor permission bits.
const (
	FD_READ    = 0x1 /// read permission
	FD_WRITE   = 0x2 /// write permission
	FD_CLOEXEC = 0x4 /// close-on-exec flag
)

/// Fd_t represents an open file descriptor.
type Fd_t struct {
	// Fops is an interface implemented via a pointer receiver, so Fops
	// is a reference, not a value.
	Fops  fdops.Fdops_i /// descriptor operations
	Perms int           /// permission bits
}

/// Readable reports whether the descriptor was opened for reading.
func (fd *Fd_t) Readable() bool { return fd.Perms&FD_READ != 0 }

/// Writable reports whether the descriptor was opened for writing.
func (fd *Fd_t) Writable() bool { return fd.Perms&FD_WRITE != 0 }

/// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, error) {
	nfd := &Fd_t{}
	*nfd = *fd
	if err := nfd.Fops.Reopen(); err != nil {
		return nil, err
	}
	return nfd, nil
}

/// Dup implements proc.File: it duplicates the descriptor, panicking if
/// the underlying Fops refuses the reopen -- a dup of a descriptor the
/// process already holds open should never fail.
func (fd *Fd_t) Dup() proc.File {
	nfd, err := Copyfd(fd)
	if err != nil {
		panic("fd: dup of open descriptor failed: " + err.Error())
	}
	return nfd
}

/// Close implements proc.File. Like the original's void fileclose, it
/// has nothing to report to the caller; a close that fails is logged by
/// the underlying Fops, not surfaced here.
func (fd *Fd_t) Close() {
	fd.Fops.Close()
}

/// Cwd_t tracks the current working directory for a process.
type Cwd_t struct {
	sync.Mutex // serializes concurrent chdirs
	Fd         *Fd_t     /// descriptor for the current directory
	Path       ustr.Ustr /// canonical path
}

/// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	return cwd.Path.Extend(p)
}

/// Canonicalpath resolves "." and ".." components of p against cwd.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	return bpath.Canonicalize(cwd.Fullpath(p))
}

/// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(fd *Fd_t) *Cwd_t {
	return &Cwd_t{Fd: fd, Path: ustr.MkUstrRoot()}
}
