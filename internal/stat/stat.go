// Package stat holds the fstat-ABI structure. Its layout is part of the
// stable syscall surface (fstat=8) even though the fstat syscall body
// itself is an external collaborator.
package stat

import "unsafe"

/// Stat_t mirrors a file's stat information, as copied out to user memory
/// by the (external) fstat syscall body.
type Stat_t struct {
	_dev   uint
	_ino   uint
	_mode  uint
	_size  uint
	_rdev  uint
	_nlink uint16
}

/// Wdev stores the device ID.
func (st *Stat_t) Wdev(v uint) { st._dev = v }

/// Wino stores the inode number.
func (st *Stat_t) Wino(v uint) { st._ino = v }

/// Wmode records the file mode.
func (st *Stat_t) Wmode(v uint) { st._mode = v }

/// Wsize records the file size.
func (st *Stat_t) Wsize(v uint) { st._size = v }

/// Wrdev stores the rdev field.
func (st *Stat_t) Wrdev(v uint) { st._rdev = v }

/// Wnlink stores the hard-link count.
func (st *Stat_t) Wnlink(v uint16) { st._nlink = v }

/// Mode returns the stored mode value.
func (st *Stat_t) Mode() uint { return st._mode }

/// Size returns the stored size.
func (st *Stat_t) Size() uint { return st._size }

/// Rdev returns the stored rdev.
func (st *Stat_t) Rdev() uint { return st._rdev }

/// Rino returns the stored inode number.
func (st *Stat_t) Rino() uint { return st._ino }

/// Nlink returns the stored hard-link count.
func (st *Stat_t) Nlink() uint16 { return st._nlink }

/// Bytes exposes the raw bytes of the structure, for copyout to user
/// memory.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(&st._dev))
	return sl[:]
}
