// Package mips models MIPS32 machine code between instruction selection and
// assembly output.
//
// Design: operands are small comparable values so they can key maps and sets
// directly. Instructions carry at most one destination and three sources, and
// keep derived def/use lists in sync with every mutation.
package mips

import "fmt"

// Operand is an immediate, a label, or a register (virtual or physical).
type Operand interface {
	fmt.Stringer
	// NeedsColoring reports whether the allocator must treat the operand as
	// a graph node: every virtual register and every physical register that
	// the allocator did not assign itself.
	NeedsColoring() bool
}

// Imm is a 32-bit immediate. Encodings that take 16 bits are chosen by the
// selector.
type Imm struct {
	Value int32
}

// Label names a code or data address.
type Label struct {
	Name string
}

// VReg is a virtual register, unique within its function.
type VReg struct {
	ID int
}

// PReg is a physical register. Allocated is set when the allocator chose it;
// an unallocated PReg was fixed by the selector and is precolored.
type PReg struct {
	Reg       Reg
	Allocated bool
}

func (o Imm) String() string   { return fmt.Sprint(o.Value) }
func (o Label) String() string { return o.Name }
func (o VReg) String() string  { return fmt.Sprintf("vr%d", o.ID) }
func (o PReg) String() string  { return o.Reg.String() }

func (Imm) NeedsColoring() bool    { return false }
func (Label) NeedsColoring() bool  { return false }
func (VReg) NeedsColoring() bool   { return true }
func (o PReg) NeedsColoring() bool { return !o.Allocated }

// Fixed returns the precolored operand for r.
func Fixed(r Reg) PReg { return PReg{Reg: r} }

// IsReg reports whether o names a register.
func IsReg(o Operand) bool {
	switch o.(type) {
	case VReg, PReg:
		return true
	}
	return false
}

// IsPrecolored reports whether o is a physical register fixed before allocation.
func IsPrecolored(o Operand) bool {
	p, ok := o.(PReg)
	return ok && !p.Allocated
}

// SameReg reports whether a and b denote the same register, ignoring how a
// physical register was chosen.
func SameReg(a, b Operand) bool {
	pa, okA := a.(PReg)
	pb, okB := b.(PReg)
	if okA && okB {
		return pa.Reg == pb.Reg
	}
	return IsReg(a) && a == b
}

// Fits16 reports whether v fits a signed 16-bit immediate field.
func Fits16(v int32) bool { return v >= -32768 && v <= 32767 }

// FitsU16 reports whether v fits an unsigned 16-bit immediate field.
func FitsU16(v int32) bool { return v >= 0 && v <= 65535 }
