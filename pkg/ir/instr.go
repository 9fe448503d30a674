package ir

// Instr is an instruction. Instructions producing a result are Values too.
type Instr interface {
	Value
	Block() *Block
	Operands() []Value
	inst()
}

type instrBase struct {
	name   string
	typ    Type
	parent *Block
}

func (i *instrBase) Type() Type    { return i.typ }
func (i *instrBase) Name() string  { return i.name }
func (i *instrBase) Block() *Block { return i.parent }
func (*instrBase) inst()           {}

// BinOp is a binary arithmetic opcode.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpSDiv
	OpSRem
)

var binOpNames = [...]string{"add", "sub", "mul", "sdiv", "srem"}

func (op BinOp) String() string { return binOpNames[op] }

// Cond is an integer comparison predicate.
type Cond int

const (
	CondEq Cond = iota
	CondNe
	CondSlt
	CondSle
	CondSgt
	CondSge
)

var condNames = [...]string{"eq", "ne", "slt", "sle", "sgt", "sge"}

func (c Cond) String() string { return condNames[c] }

// Eval applies the predicate to two literals.
func (c Cond) Eval(x, y int32) bool {
	switch c {
	case CondEq:
		return x == y
	case CondNe:
		return x != y
	case CondSlt:
		return x < y
	case CondSle:
		return x <= y
	case CondSgt:
		return x > y
	default:
		return x >= y
	}
}

// Binary is X op Y.
type Binary struct {
	instrBase
	Op   BinOp
	X, Y Value
}

func (i *Binary) Operands() []Value { return []Value{i.X, i.Y} }

// ICmp compares X and Y, yielding an i1.
type ICmp struct {
	instrBase
	Cond Cond
	X, Y Value
}

func (i *ICmp) Operands() []Value { return []Value{i.X, i.Y} }

// Zext widens X to the instruction type.
type Zext struct {
	instrBase
	X Value
}

func (i *Zext) Operands() []Value { return []Value{i.X} }

// Trunc narrows X to the instruction type.
type Trunc struct {
	instrBase
	X Value
}

func (i *Trunc) Operands() []Value { return []Value{i.X} }

// Alloca reserves frame memory for one Allocated value.
type Alloca struct {
	instrBase
	Allocated Type
}

func (i *Alloca) Operands() []Value { return nil }

// Load reads through Ptr.
type Load struct {
	instrBase
	Ptr Value
}

func (i *Load) Operands() []Value { return []Value{i.Ptr} }

// Store writes Val through Ptr.
type Store struct {
	instrBase
	Val, Ptr Value
}

func (i *Store) Operands() []Value { return []Value{i.Val, i.Ptr} }

// GEP computes an element address from Base and one or two indices.
type GEP struct {
	instrBase
	Base    Value
	Indices []Value
}

func (i *GEP) Operands() []Value { return append([]Value{i.Base}, i.Indices...) }

// Call invokes Callee.
type Call struct {
	instrBase
	Callee *Function
	Args   []Value
}

func (i *Call) Operands() []Value { return i.Args }

// Br jumps to True, or branches on Cond between True and False.
type Br struct {
	instrBase
	Cond        Value
	True, False *Block
}

func (i *Br) Operands() []Value {
	if i.Cond == nil {
		return nil
	}
	return []Value{i.Cond}
}

// Ret returns Val, or nothing when Val is nil.
type Ret struct {
	instrBase
	Val Value
}

func (i *Ret) Operands() []Value {
	if i.Val == nil {
		return nil
	}
	return []Value{i.Val}
}
