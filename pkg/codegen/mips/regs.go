package mips

import "github.com/pkg/errors"

// Reg is a MIPS32 general-purpose register number.
type Reg uint8

// MIPS32 registers in hardware order.
const (
	Zero Reg = iota
	AT
	V0
	V1
	A0
	A1
	A2
	A3
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	T7
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	T8
	T9
	K0
	K1
	GP
	SP
	FP
	RA
	NumRegs
)

var regNames = [NumRegs]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "fp", "ra",
}

// Name returns the bare register name ("t0").
func (r Reg) Name() string {
	if r >= NumRegs {
		return "?"
	}
	return regNames[r]
}

func (r Reg) String() string { return "$" + r.Name() }

// ParseReg resolves a register name, with or without the leading '$'.
func ParseReg(name string) (Reg, error) {
	if len(name) > 0 && name[0] == '$' {
		name = name[1:]
	}
	for i, n := range regNames {
		if n == name {
			return Reg(i), nil
		}
	}
	return 0, errors.Errorf("unknown register %q", name)
}

// ArgRegs carry the first four integer arguments.
var ArgRegs = [4]Reg{A0, A1, A2, A3}

// Allocatable is the default color set, in preference order.
var Allocatable = []Reg{
	T0, T1, T2, T3, T4, T5, T6, T7, T8, T9,
	S0, S1, S2, S3, S4, S5, S6, S7,
}

// MustPreserve reports whether a function writing r has to restore it.
// Argument, return-value and scratch registers are free for the callee.
func MustPreserve(r Reg) bool {
	switch r {
	case Zero, AT, V0, A0, A1, A2, A3, SP:
		return false
	}
	return r < NumRegs
}
