// Package bounds names the resource cost of bounded-iteration kernel
// loops -- copying memory across the user/kernel boundary one page at a
// time, in this kernel -- so callers can ask internal/res to admit that
// much work before doing it, rather than running an unbounded loop that
// might starve a resource shared with an interrupt context.
package bounds

/// Bound identifies a specific loop site, not a resource kind: every
/// site that could run unbounded register separately here even though
/// today they all cost the same, so tightening one later doesn't
/// silently affect the others.
type Bound int

const (
	B_VMM_COPYOUT Bound = iota
	B_VMM_COPYIN
	B_VMM_COPYINSTR
)

/// cost is the admission ticket size per loop iteration, one page's
/// worth of work at each site.
var cost = map[Bound]int{
	B_VMM_COPYOUT:   1,
	B_VMM_COPYIN:    1,
	B_VMM_COPYINSTR: 1,
}

/// Bounds returns the admission ticket size for b.
func Bounds(b Bound) int {
	return cost[b]
}
