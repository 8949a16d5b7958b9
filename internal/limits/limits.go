// Package limits tracks system-wide resource admission counters.
package limits

import (
	"sync/atomic"
	"unsafe"

	"rvkernel/internal/defs"
)

/// Lhits counts limit hits, for diagnostics.
var Lhits int64

/// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t int64

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(s._aptr(), int64(n))
}

/// Taken tries to decrement the limit by the provided amount and reports
/// whether it succeeded.
func (s *Sysatomic_t) Taken(n uint) bool {
	g := atomic.AddInt64(s._aptr(), -int64(n))
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), int64(n))
	atomic.AddInt64(&Lhits, 1)
	return false
}

/// Take decrements the limit by one and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() { s.Given(1) }

/// Cur returns the current value.
func (s *Sysatomic_t) Cur() int64 { return atomic.LoadInt64((*int64)(s)) }

/// Syslimit_t tracks system-wide resource admission limits. Defaults come
/// from the parameters table: fixed process/hart/file-table sizes rather
/// than the open-ended defaults a general-purpose kernel would pick.
type Syslimit_t struct {
	Procs     Sysatomic_t /// admission against defs.NPROC
	OpenFiles Sysatomic_t /// admission against defs.NFILE
	Pipes     Sysatomic_t
}

/// Syslimit holds the process-wide configured limits.
var Syslimit = MkSysLimit()

/// MkSysLimit returns the default set of limits sized from defs.
func MkSysLimit() *Syslimit_t {
	s := &Syslimit_t{}
	s.Procs.Given(defs.NPROC)
	s.OpenFiles.Given(defs.NFILE)
	s.Pipes.Given(defs.NFILE)
	return s
}
