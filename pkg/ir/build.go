package ir

// Builder appends instructions to a block.
// Design: one method per instruction kind, result types derived from operands.
type Builder struct {
	blk *Block
}

// NewBuilder returns a builder positioned at the end of b.
func NewBuilder(b *Block) *Builder {
	return &Builder{blk: b}
}

// SetBlock moves the insertion point to the end of b.
func (b *Builder) SetBlock(blk *Block) { b.blk = blk }

// Block returns the current insertion block.
func (b *Builder) Block() *Block { return b.blk }

func (b *Builder) base(typ Type, named bool) instrBase {
	ib := instrBase{typ: typ, parent: b.blk}
	if named {
		ib.name = b.blk.Parent.newName()
	}
	return ib
}

func (b *Builder) emit(i Instr) {
	b.blk.Instrs = append(b.blk.Instrs, i)
}

// Binary appends x op y.
func (b *Builder) Binary(op BinOp, x, y Value) *Binary {
	i := &Binary{instrBase: b.base(x.Type(), true), Op: op, X: x, Y: y}
	b.emit(i)
	return i
}

func (b *Builder) Add(x, y Value) *Binary  { return b.Binary(OpAdd, x, y) }
func (b *Builder) Sub(x, y Value) *Binary  { return b.Binary(OpSub, x, y) }
func (b *Builder) Mul(x, y Value) *Binary  { return b.Binary(OpMul, x, y) }
func (b *Builder) SDiv(x, y Value) *Binary { return b.Binary(OpSDiv, x, y) }
func (b *Builder) SRem(x, y Value) *Binary { return b.Binary(OpSRem, x, y) }

// ICmp appends a comparison.
func (b *Builder) ICmp(c Cond, x, y Value) *ICmp {
	i := &ICmp{instrBase: b.base(I1, true), Cond: c, X: x, Y: y}
	b.emit(i)
	return i
}

// Zext appends a zero extension of x to t.
func (b *Builder) Zext(x Value, t IntType) *Zext {
	i := &Zext{instrBase: b.base(t, true), X: x}
	b.emit(i)
	return i
}

// Trunc appends a truncation of x to t.
func (b *Builder) Trunc(x Value, t IntType) *Trunc {
	i := &Trunc{instrBase: b.base(t, true), X: x}
	b.emit(i)
	return i
}

// Alloca appends a frame reservation for one t.
func (b *Builder) Alloca(t Type) *Alloca {
	i := &Alloca{instrBase: b.base(PtrTo(t), true), Allocated: t}
	b.emit(i)
	return i
}

// Load appends a load through ptr.
func (b *Builder) Load(ptr Value) *Load {
	i := &Load{instrBase: b.base(Elem(ptr.Type()), true), Ptr: ptr}
	b.emit(i)
	return i
}

// Store appends a store of v through ptr.
func (b *Builder) Store(v, ptr Value) *Store {
	i := &Store{instrBase: b.base(Void, false), Val: v, Ptr: ptr}
	b.emit(i)
	return i
}

// GEP appends an address computation. With one index the result points at the
// base's element type; with two, the base must point at an array and the
// result points at the array's element type.
func (b *Builder) GEP(base Value, indices ...Value) *GEP {
	t := Elem(base.Type())
	if len(indices) == 2 {
		if arr, ok := t.(ArrayType); ok {
			t = arr.Elem
		}
	}
	i := &GEP{instrBase: b.base(PtrTo(t), true), Base: base, Indices: indices}
	b.emit(i)
	return i
}

// Call appends a call of fn.
func (b *Builder) Call(fn *Function, args ...Value) *Call {
	_, void := fn.Ret.(VoidType)
	i := &Call{instrBase: b.base(fn.Ret, !void), Callee: fn, Args: args}
	b.emit(i)
	return i
}

// Br appends an unconditional jump.
func (b *Builder) Br(target *Block) *Br {
	i := &Br{instrBase: b.base(Void, false), True: target}
	b.emit(i)
	return i
}

// CondBr appends a two-way branch on cond.
func (b *Builder) CondBr(cond Value, t, f *Block) *Br {
	i := &Br{instrBase: b.base(Void, false), Cond: cond, True: t, False: f}
	b.emit(i)
	return i
}

// Ret appends a return; v may be nil.
func (b *Builder) Ret(v Value) *Ret {
	i := &Ret{instrBase: b.base(Void, false), Val: v}
	b.emit(i)
	return i
}
