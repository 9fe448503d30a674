package mips

import (
	"fmt"
	"strings"
)

// Opcode selects the instruction form.
type Opcode int

const (
	OpAddu    Opcode = iota // addu, or addiu with an immediate
	OpSubu                  // subu
	OpMul                   // mul
	OpDiv                   // div + mflo
	OpRem                   // div + mfhi
	OpAnd                   // and, or andi with an immediate
	OpSet                   // s<cond>
	OpMove                  // move, li or la depending on the source
	OpLoad                  // lw dst, off(base)
	OpStore                 // sw val, off(base)
	OpBranch                // b<cond> x, y, target
	OpJump                  // j target
	OpCall                  // jal callee
	OpSyscall               // li $v0, service; syscall
	OpRet                   // epilogue of the owning function
)

var opNames = [...]string{
	"addu", "subu", "mul", "div", "rem", "and", "set", "move",
	"lw", "sw", "branch", "j", "jal", "syscall", "ret",
}

func (op Opcode) String() string { return opNames[op] }

// Cond is a comparison for set and branch instructions.
type Cond int

const (
	CondEq Cond = iota
	CondNe
	CondLt
	CondLe
	CondGt
	CondGe
)

var condSuffix = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (c Cond) String() string { return condSuffix[c] }

// Instr is one machine instruction (or a fixed pseudo-sequence).
//
// Sources by opcode: binary/set ops use Src[0], Src[1]; move uses Src[0];
// load uses base Src[0] and offset Src[1]; store uses value Src[0], base
// Src[1], offset Src[2]; branch compares Src[0] with Src[1].
type Instr struct {
	Op      Opcode
	Cond    Cond
	Dst     Operand
	Src     [3]Operand
	Target  *Block
	Callee  string
	Service int
	Fn      *Function

	implicitDefs []Operand
	implicitUses []Operand
	defs, uses   []Operand
}

func newInstr(op Opcode, dst Operand, srcs ...Operand) *Instr {
	ins := &Instr{Op: op, Dst: dst}
	copy(ins.Src[:], srcs)
	ins.recompute()
	return ins
}

// NewBinary creates an arithmetic or logical instruction.
func NewBinary(op Opcode, dst, x, y Operand) *Instr { return newInstr(op, dst, x, y) }

// NewSet creates a set-on-condition instruction.
func NewSet(c Cond, dst, x, y Operand) *Instr {
	ins := newInstr(OpSet, dst, x, y)
	ins.Cond = c
	return ins
}

// NewMove creates a copy; the source may be a register, immediate or label.
func NewMove(dst, src Operand) *Instr { return newInstr(OpMove, dst, src) }

// NewLoad creates lw dst, off(base).
func NewLoad(dst, base Operand, off int32) *Instr {
	return newInstr(OpLoad, dst, base, Imm{Value: off})
}

// NewStore creates sw val, off(base).
func NewStore(val, base Operand, off int32) *Instr {
	return newInstr(OpStore, nil, val, base, Imm{Value: off})
}

// NewBranch creates a conditional branch to target.
func NewBranch(c Cond, x, y Operand, target *Block) *Instr {
	ins := newInstr(OpBranch, nil, x, y)
	ins.Cond = c
	ins.Target = target
	return ins
}

// NewJump creates an unconditional jump.
func NewJump(target *Block) *Instr {
	ins := newInstr(OpJump, nil)
	ins.Target = target
	return ins
}

// NewCall creates jal callee. Argument and clobber registers are added by the
// caller through AddDef and AddUse.
func NewCall(callee string) *Instr {
	ins := newInstr(OpCall, nil)
	ins.Callee = callee
	return ins
}

// NewSyscall creates a system call with the given service number.
func NewSyscall(service int) *Instr {
	ins := newInstr(OpSyscall, nil)
	ins.Service = service
	ins.AddDef(Fixed(V0))
	return ins
}

// NewRet creates the return sequence of fn.
func NewRet(fn *Function) *Instr {
	ins := newInstr(OpRet, nil)
	ins.Fn = fn
	return ins
}

// AddDef records an extra register written by the instruction.
func (i *Instr) AddDef(o Operand) {
	i.implicitDefs = append(i.implicitDefs, o)
	i.recompute()
}

// AddUse records an extra register read by the instruction.
func (i *Instr) AddUse(o Operand) {
	i.implicitUses = append(i.implicitUses, o)
	i.recompute()
}

// SetDst replaces the destination.
func (i *Instr) SetDst(o Operand) {
	i.Dst = o
	i.recompute()
}

// SetSrc replaces source n.
func (i *Instr) SetSrc(n int, o Operand) {
	i.Src[n] = o
	i.recompute()
}

// ReplaceReg substitutes every occurrence of old, in any position.
func (i *Instr) ReplaceReg(old, repl Operand) {
	if i.Dst == old {
		i.Dst = repl
	}
	for n, s := range i.Src {
		if s == old {
			i.Src[n] = repl
		}
	}
	for n, d := range i.implicitDefs {
		if d == old {
			i.implicitDefs[n] = repl
		}
	}
	for n, u := range i.implicitUses {
		if u == old {
			i.implicitUses[n] = repl
		}
	}
	i.recompute()
}

// Defs returns the registers written.
func (i *Instr) Defs() []Operand { return i.defs }

// Uses returns the registers read.
func (i *Instr) Uses() []Operand { return i.uses }

// Defines reports whether o is written.
func (i *Instr) Defines(o Operand) bool { return contains(i.defs, o) }

// Reads reports whether o is read.
func (i *Instr) Reads(o Operand) bool { return contains(i.uses, o) }

// IsRegMove reports whether the instruction copies one allocatable register
// into another, making it a coalescing candidate. Copies from $zero are
// excluded: merging a register into $zero would discard its later writes.
func (i *Instr) IsRegMove() bool {
	if i.Op != OpMove || i.Dst == nil || i.Src[0] == nil {
		return false
	}
	if SameReg(i.Src[0], Fixed(Zero)) || SameReg(i.Dst, Fixed(Zero)) {
		return false
	}
	return i.Dst.NeedsColoring() && i.Src[0].NeedsColoring()
}

func (i *Instr) recompute() {
	i.defs, i.uses = nil, nil
	if i.Dst != nil && IsReg(i.Dst) {
		i.defs = append(i.defs, i.Dst)
	}
	for _, d := range i.implicitDefs {
		if !contains(i.defs, d) {
			i.defs = append(i.defs, d)
		}
	}
	for _, s := range i.Src {
		if s != nil && IsReg(s) && !contains(i.uses, s) {
			i.uses = append(i.uses, s)
		}
	}
	for _, u := range i.implicitUses {
		if !contains(i.uses, u) {
			i.uses = append(i.uses, u)
		}
	}
}

func contains(ops []Operand, o Operand) bool {
	for _, x := range ops {
		if x == o {
			return true
		}
	}
	return false
}

func (i *Instr) String() string {
	switch i.Op {
	case OpAddu:
		if _, ok := i.Src[1].(Imm); ok {
			return format("addiu", i.Dst, i.Src[0], i.Src[1])
		}
		return format("addu", i.Dst, i.Src[0], i.Src[1])
	case OpSubu:
		if imm, ok := i.Src[1].(Imm); ok {
			return format("addiu", i.Dst, i.Src[0], Imm{Value: -imm.Value})
		}
		return format("subu", i.Dst, i.Src[0], i.Src[1])
	case OpMul:
		return format("mul", i.Dst, i.Src[0], i.Src[1])
	case OpDiv:
		return format("div", i.Src[0], i.Src[1]) + "\n\t" + format("mflo", i.Dst)
	case OpRem:
		return format("div", i.Src[0], i.Src[1]) + "\n\t" + format("mfhi", i.Dst)
	case OpAnd:
		if _, ok := i.Src[1].(Imm); ok {
			return format("andi", i.Dst, i.Src[0], i.Src[1])
		}
		return format("and", i.Dst, i.Src[0], i.Src[1])
	case OpSet:
		return format("s"+i.Cond.String(), i.Dst, i.Src[0], i.Src[1])
	case OpMove:
		switch i.Src[0].(type) {
		case Imm:
			return format("li", i.Dst, i.Src[0])
		case Label:
			return format("la", i.Dst, i.Src[0])
		}
		return format("move", i.Dst, i.Src[0])
	case OpLoad:
		return fmt.Sprintf("lw\t%s, %s(%s)", i.Dst, i.Src[1], i.Src[0])
	case OpStore:
		return fmt.Sprintf("sw\t%s, %s(%s)", i.Src[0], i.Src[2], i.Src[1])
	case OpBranch:
		return format("b"+i.Cond.String(), i.Src[0], i.Src[1], Label{Name: i.Target.Label})
	case OpJump:
		return format("j", Label{Name: i.Target.Label})
	case OpCall:
		return format("jal", Label{Name: i.Callee})
	case OpSyscall:
		return format("li", Fixed(V0), Imm{Value: int32(i.Service)}) + "\n\tsyscall"
	case OpRet:
		return i.Fn.epilogue()
	}
	return "# unknown " + i.Op.String()
}

func format(mnemonic string, ops ...Operand) string {
	parts := make([]string, len(ops))
	for n, o := range ops {
		parts[n] = o.String()
	}
	return mnemonic + "\t" + strings.Join(parts, ", ")
}
