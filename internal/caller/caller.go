// Package caller captures and deduplicates kernel-panic call chains, so a
// kernel invariant violation hit repeatedly from the same call path is
// reported once rather than flooding the console.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

/// kernelPanics is the dedup registry every kernel invariant violation
/// routes through: the same broken call path hit repeatedly (e.g. by
/// more than one hart) prints its trace once instead of flooding the
/// console.
var kernelPanics = &Distinct_caller_t{Enabled: true}

/// KernelPanic reports the current call chain through kernelPanics --
/// printing its trace only the first time that chain is seen -- then
/// panics with msg. Every kernel-invariant-violation panic in this tree
/// goes through here rather than calling panic directly, mirroring the
/// original's panic() freezing console output before it halts.
func KernelPanic(msg string) {
	if fresh, trace := kernelPanics.Distinct(); fresh {
		fmt.Print(trace)
	}
	panic(msg)
}

/// Dump prints the call stack starting at the given depth.
func Dump(start int) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	fmt.Printf("%s", s)
}

/// Distinct_caller_t tracks whether a call chain has been seen before, so
/// that repeated panics from the same path print once. Fields are
/// protected by the embedded mutex.
type Distinct_caller_t struct {
	sync.Mutex
	Enabled bool
	did     map[uintptr]bool
}

func (dc *Distinct_caller_t) _pchash(pcs []uintptr) uintptr {
	if len(pcs) == 0 {
		panic("d'oh")
	}
	var ret uintptr
	for _, pc := range pcs {
		pc = pc*1103515245 + 12345
		ret ^= pc
	}
	return ret
}

/// Len returns the number of unique caller paths recorded.
func (dc *Distinct_caller_t) Len() int {
	dc.Lock()
	defer dc.Unlock()
	return len(dc.did)
}

/// Distinct reports whether the current call chain is new, returning a
/// formatted stack trace alongside true when it has not been seen before.
func (dc *Distinct_caller_t) Distinct() (bool, string) {
	dc.Lock()
	defer dc.Unlock()
	if !dc.Enabled {
		return false, ""
	}
	if dc.did == nil {
		dc.did = make(map[uintptr]bool)
	}

	var pcs []uintptr
	for sz, got := 30, 30; got >= sz; sz *= 2 {
		pcs = make([]uintptr, sz)
		got = runtime.Callers(3, pcs)
		if got == 0 {
			return false, ""
		}
		pcs = pcs[:got]
	}
	h := dc._pchash(pcs)
	if ok := dc.did[h]; ok {
		return false, ""
	}
	dc.did[h] = true
	frames := runtime.CallersFrames(pcs)
	fs := ""
	for {
		fr, more := frames.Next()
		if fs == "" {
			fs = fmt.Sprintf("%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		} else {
			fs += fmt.Sprintf("\t%v (%v:%v)\n", fr.Function, fr.File, fr.Line)
		}
		if !more || fr.Function == "runtime.goexit" {
			break
		}
	}
	return true, fs
}
