// Package ir implements the intermediate representation consumed by the back end.
//
// Design: typed basic blocks with explicit terminators, values identified by
// pointer identity. Locals live in memory (alloca/load/store), so the IR needs
// no phi nodes. The back end reads it and never mutates it.
package ir

import "fmt"

// Module is the top-level IR container.
type Module struct {
	Globals   []*GlobalVariable
	Functions []*Function
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{}
}

// Function looks up a function by name.
func (m *Module) Function(name string) *Function {
	for _, fn := range m.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Global looks up a global variable by name.
func (m *Module) Global(name string) *GlobalVariable {
	for _, g := range m.Globals {
		if g.name == name {
			return g
		}
	}
	return nil
}

// NewGlobal declares a global variable initialized with init.
func (m *Module) NewGlobal(name string, init Constant) *GlobalVariable {
	g := &GlobalVariable{name: name, Init: init}
	m.Globals = append(m.Globals, g)
	return g
}

// NewFunction declares a function with a body to be built.
func (m *Module) NewFunction(name string, ret Type, params ...Type) *Function {
	fn := &Function{Name: name, Ret: ret}
	for i, t := range params {
		fn.Params = append(fn.Params, &Argument{
			name:   fmt.Sprintf("%%arg%d", i),
			typ:    t,
			Index:  i,
			Parent: fn,
		})
	}
	m.Functions = append(m.Functions, fn)
	return fn
}

// DeclareLibrary declares a body-less runtime function.
func (m *Module) DeclareLibrary(name string, ret Type, params ...Type) *Function {
	fn := m.NewFunction(name, ret, params...)
	fn.Library = true
	return fn
}

// DeclareRuntime declares the I/O runtime every program may call.
func DeclareRuntime(m *Module) {
	m.DeclareLibrary("getint", I32)
	m.DeclareLibrary("getchar", I32)
	m.DeclareLibrary("putint", Void, I32)
	m.DeclareLibrary("putch", Void, I32)
	m.DeclareLibrary("putstr", Void, PtrTo(I8))
}

// Function is a function definition or a library declaration.
type Function struct {
	Name    string
	Ret     Type
	Params  []*Argument
	Blocks  []*Block
	Library bool

	nextID int
}

// NewBlock appends a basic block. The first block is the entry.
func (fn *Function) NewBlock(name string) *Block {
	b := &Block{Name: name, Parent: fn}
	fn.Blocks = append(fn.Blocks, b)
	return b
}

// Entry returns the entry block.
func (fn *Function) Entry() *Block {
	if len(fn.Blocks) == 0 {
		return nil
	}
	return fn.Blocks[0]
}

func (fn *Function) newName() string {
	fn.nextID++
	return fmt.Sprintf("%%%d", fn.nextID)
}

// Block is a basic block - straight-line code ending in a terminator.
type Block struct {
	Name      string
	Instrs    []Instr
	LoopDepth int
	Parent    *Function
}

// Terminator returns the last instruction if it ends the block.
func (b *Block) Terminator() Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	switch t := b.Instrs[len(b.Instrs)-1].(type) {
	case *Br, *Ret:
		return t
	}
	return nil
}

// Succs returns the successors: none, the single target, or true then false.
func (b *Block) Succs() []*Block {
	br, ok := b.Terminator().(*Br)
	if !ok {
		return nil
	}
	if br.Cond == nil {
		return []*Block{br.True}
	}
	return []*Block{br.True, br.False}
}

// Value is anything an instruction can use as an operand.
type Value interface {
	Type() Type
	Name() string
}

// Constant is a compile-time value usable as an initializer.
type Constant interface {
	Value
	constant()
}

// ConstInt is an integer literal.
type ConstInt struct {
	Typ IntType
	Val int32
}

// Const returns an i32 literal.
func Const(v int32) *ConstInt { return &ConstInt{Typ: I32, Val: v} }

func (c *ConstInt) Type() Type   { return c.Typ }
func (c *ConstInt) Name() string { return fmt.Sprint(c.Val) }
func (*ConstInt) constant()      {}

// ConstArray is an initialized array.
type ConstArray struct {
	Typ   ArrayType
	Elems []Constant
}

func (c *ConstArray) Type() Type   { return c.Typ }
func (c *ConstArray) Name() string { return c.Typ.String() }
func (*ConstArray) constant()      {}

// ConstString is a NUL-terminated string literal.
type ConstString struct {
	Text string
}

func (c *ConstString) Type() Type   { return ArrayOf(I8, len(c.Text)+1) }
func (c *ConstString) Name() string { return fmt.Sprintf("%q", c.Text) }
func (*ConstString) constant()      {}

// ZeroInitializer zero-fills a value of type Typ.
type ZeroInitializer struct {
	Typ Type
}

func (c *ZeroInitializer) Type() Type   { return c.Typ }
func (c *ZeroInitializer) Name() string { return "zeroinitializer" }
func (*ZeroInitializer) constant()      {}

// GlobalVariable is a module-level variable; as a value it is its address.
type GlobalVariable struct {
	name string
	Init Constant
}

func (g *GlobalVariable) Type() Type   { return PtrTo(g.Init.Type()) }
func (g *GlobalVariable) Name() string { return g.name }

// Argument is a formal parameter.
type Argument struct {
	name   string
	typ    Type
	Index  int
	Parent *Function
}

func (a *Argument) Type() Type   { return a.typ }
func (a *Argument) Name() string { return a.name }
