// Package bitvec implements fixed-width unsigned integer values used as the
// signal type throughout the netlist: every wire, port and behavior
// equation operates on a BitVec rather than a raw Go integer, so that width
// masking and sign extension happen in exactly one place.
package bitvec

import "fmt"

// MaxWidth is the widest signal the simulator carries (a 64-bit multiply
// result spans two 32-bit registers, so the vector itself stays at 64).
const MaxWidth = 64

// BitVec is an immutable width-masked unsigned value. Zero value is a
// 1-bit zero, not a useful default — always construct with New.
type BitVec struct {
	width uint8
	v     uint64
}

// New masks v to width bits and returns the resulting vector. Width must be
// in [1,64]; New panics outside that range since it indicates a programming
// error in the netlist, not a runtime condition.
func New(width uint8, v uint64) BitVec {
	if width == 0 || width > MaxWidth {
		panic(fmt.Sprintf("bitvec: invalid width %d", width))
	}
	return BitVec{width: width, v: v & mask(width)}
}

// Zero returns the all-zero vector of the given width.
func Zero(width uint8) BitVec { return New(width, 0) }

// Bool returns the 1-bit vector for a boolean.
func Bool(b bool) BitVec {
	if b {
		return New(1, 1)
	}
	return New(1, 0)
}

func mask(width uint8) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// Width returns the bit width of v.
func (b BitVec) Width() uint8 { return b.width }

// Uint64 returns the unsigned value.
func (b BitVec) Uint64() uint64 { return b.v }

// Uint32 returns the low 32 bits as a uint32 (the common case for RV32).
func (b BitVec) Uint32() uint32 { return uint32(b.v) }

// Int64 returns the value sign-extended from its width.
func (b BitVec) Int64() int64 {
	shift := 64 - b.width
	return int64(b.v<<shift) >> shift
}

// IsZero reports whether every bit is clear.
func (b BitVec) IsZero() bool { return b.v == 0 }

// IsTrue reports whether the vector (as a 1-bit Boolean) is set. Any
// nonzero vector counts as true, matching hardware "OR-reduce".
func (b BitVec) IsTrue() bool { return b.v != 0 }

// Eq reports bitwise-equal values regardless of declared width.
func (b BitVec) Eq(o BitVec) bool { return b.v == o.v }

func (b BitVec) String() string {
	return fmt.Sprintf("%d'h%x", b.width, b.v)
}

// Add returns a+b masked to the width of a.
func (b BitVec) Add(o BitVec) BitVec { return New(b.width, b.v+o.v) }

// Sub returns a-b masked to the width of a.
func (b BitVec) Sub(o BitVec) BitVec { return New(b.width, b.v-o.v) }

// Mul returns the low bits of a*b masked to the width of a.
func (b BitVec) Mul(o BitVec) BitVec { return New(b.width, b.v*o.v) }

// And, Or, Xor are bitwise ops at the width of a.
func (b BitVec) And(o BitVec) BitVec { return New(b.width, b.v&o.v) }
func (b BitVec) Or(o BitVec) BitVec  { return New(b.width, b.v|o.v) }
func (b BitVec) Xor(o BitVec) BitVec { return New(b.width, b.v^o.v) }

// Not is bitwise complement at the width of b.
func (b BitVec) Not() BitVec { return New(b.width, ^b.v) }

// Shl is a logical left shift; bits shifted past the width are dropped.
func (b BitVec) Shl(amount uint64) BitVec { return New(b.width, b.v<<amount) }

// Shr is a logical (zero-filling) right shift.
func (b BitVec) Shr(amount uint64) BitVec { return New(b.width, b.v>>amount) }

// Sar is an arithmetic (sign-filling) right shift.
func (b BitVec) Sar(amount uint64) BitVec {
	signed := b.Int64()
	return New(b.width, uint64(signed>>amount))
}

// Lt is an unsigned less-than comparison, returned as a 1-bit BitVec.
func (b BitVec) Lt(o BitVec) BitVec { return Bool(b.v < o.v) }

// LtSigned is a signed less-than comparison using each operand's own width
// for sign extension.
func (b BitVec) LtSigned(o BitVec) BitVec { return Bool(b.Int64() < o.Int64()) }

// Select extracts a single bit as a 1-bit BitVec.
func (b BitVec) Select(bit uint8) BitVec {
	return New(1, (b.v>>bit)&1)
}

// Slice extracts bits [hi:lo] inclusive as a (hi-lo+1)-bit BitVec.
func (b BitVec) Slice(hi, lo uint8) BitVec {
	w := hi - lo + 1
	return New(w, b.v>>lo)
}

// Concat places b in the high bits and o in the low bits, producing a
// vector whose width is the sum of the two.
func (b BitVec) Concat(o BitVec) BitVec {
	w := b.width + o.width
	if w > MaxWidth {
		panic(fmt.Sprintf("bitvec: concat width %d exceeds %d", w, MaxWidth))
	}
	return New(w, (b.v<<o.width)|(o.v&mask(o.width)))
}

// Mux selects whenTrue (sel=1) or whenFalse (sel=0); any nonzero sel
// counts as 1.
func Mux(sel BitVec, whenTrue, whenFalse BitVec) BitVec {
	if sel.IsTrue() {
		return whenTrue
	}
	return whenFalse
}

// SignExtend reinterprets v (currently `from` bits wide) as a signed value
// and widens it to 32 bits, the RISC-V immediate-generator primitive.
func SignExtend(v uint32, from uint8) BitVec {
	bv := New(from, uint64(v))
	return New(32, uint64(uint32(bv.Int64())))
}
