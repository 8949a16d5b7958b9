// Package trapframe defines the per-process trapframe: the fixed-offset
// structure the trampoline saves user registers into on trap entry and
// restores them from on return. The offsets are a stable ABI between the
// (simulated) trampoline and the kernel.
package trapframe

import "unsafe"

/// Trapframe holds the four kernel fields the trampoline consults on the
/// next entry, plus all 31 user general-purpose registers, at the
/// byte offsets spec.md §6 fixes.
type Trapframe struct {
	KernelSatp  uint64 /*   0 */
	KernelSp    uint64 /*   8 */
	KernelTrap  uint64 /*  16 */
	Epc         uint64 /*  24 */
	KernelHartid uint64 /*  32 */

	Ra uint64 /*  40 */
	Sp uint64 /*  48 */
	Gp uint64 /*  56 */
	Tp uint64 /*  64 */
	T0 uint64 /*  72 */
	T1 uint64 /*  80 */
	T2 uint64 /*  88 */
	S0 uint64 /*  96 */
	S1 uint64 /* 104 */
	A0 uint64 /* 112 */
	A1 uint64 /* 120 */
	A2 uint64 /* 128 */
	A3 uint64 /* 136 */
	A4 uint64 /* 144 */
	A5 uint64 /* 152 */
	A6 uint64 /* 160 */
	A7 uint64 /* 168 */
	S2 uint64 /* 176 */
	S3 uint64 /* 184 */
	S4 uint64 /* 192 */
	S5 uint64 /* 200 */
	S6 uint64 /* 208 */
	S7 uint64 /* 216 */
	S8 uint64 /* 224 */
	S9 uint64 /* 232 */
	S10 uint64 /* 240 */
	S11 uint64 /* 248 */
	T3 uint64 /* 256 */
	T4 uint64 /* 264 */
	T5 uint64 /* 272 */
	T6 uint64 /* 280 */
}

/// Size is the byte size of the trapframe, asserted against the field
/// offsets below at package init.
const Size = unsafe.Sizeof(Trapframe{})

func init() {
	var tf Trapframe
	base := uintptr(unsafe.Pointer(&tf))
	assertOffset("KernelSatp", unsafe.Pointer(&tf.KernelSatp), base, 0)
	assertOffset("KernelSp", unsafe.Pointer(&tf.KernelSp), base, 8)
	assertOffset("KernelTrap", unsafe.Pointer(&tf.KernelTrap), base, 16)
	assertOffset("Epc", unsafe.Pointer(&tf.Epc), base, 24)
	assertOffset("KernelHartid", unsafe.Pointer(&tf.KernelHartid), base, 32)
	assertOffset("Ra", unsafe.Pointer(&tf.Ra), base, 40)
	assertOffset("A7", unsafe.Pointer(&tf.A7), base, 168)
	assertOffset("T6", unsafe.Pointer(&tf.T6), base, 280)
}

func assertOffset(field string, p unsafe.Pointer, base uintptr, want uintptr) {
	got := uintptr(p) - base
	if got != want {
		panic("trapframe: " + field + " at wrong offset")
	}
}

/// Bytes exposes the raw bytes of the trapframe, for copyout/copyin to
/// the mapped trapframe page.
func (tf *Trapframe) Bytes() []byte {
	return (*[Size]byte)(unsafe.Pointer(tf))[:]
}

/// Argraw returns the raw value of saved register a0..a5 by index,
/// panicking on an invalid index.
func (tf *Trapframe) Argraw(n int) uint64 {
	switch n {
	case 0:
		return tf.A0
	case 1:
		return tf.A1
	case 2:
		return tf.A2
	case 3:
		return tf.A3
	case 4:
		return tf.A4
	case 5:
		return tf.A5
	}
	panic("trapframe: argraw bad index")
}
