package mips

// Block is a basic block of machine instructions.
type Block struct {
	Label     string
	Instrs    []*Instr
	LoopDepth int
	// Succs holds zero, one or two successors; a conditional block lists
	// its taken target first and its fall-through second.
	Succs []*Block
}

// Append adds ins at the end of the block.
func (b *Block) Append(ins ...*Instr) {
	b.Instrs = append(b.Instrs, ins...)
}

// Last returns the final instruction, or nil.
func (b *Block) Last() *Instr {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

type argSlot struct {
	ins *Instr
	src int
}

// Function is a machine function under construction.
type Function struct {
	Name string
	// Entry marks the program entry point, which exits through a system
	// call and preserves no registers.
	Entry  bool
	Blocks []*Block

	// AllocaSize covers locals and spill slots and only ever grows.
	AllocaSize int
	// FrameSize and Saved are set by FinalizeFrame.
	FrameSize int
	Saved     []Reg

	nextVReg  int
	argSlots  []argSlot
	finalized bool
}

// NewFunction creates an empty function.
func NewFunction(name string, entry bool) *Function {
	return &Function{Name: name, Entry: entry}
}

// NewBlock appends a new block.
func (f *Function) NewBlock(label string, loopDepth int) *Block {
	b := &Block{Label: label, LoopDepth: loopDepth}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewVReg allocates a fresh virtual register.
func (f *Function) NewVReg() VReg {
	v := VReg{ID: f.nextVReg}
	f.nextVReg++
	return v
}

// NumVRegs returns how many virtual registers have been handed out.
func (f *Function) NumVRegs() int { return f.nextVReg }

// Alloc reserves size bytes of frame memory and returns their offset from
// the stack pointer.
func (f *Function) Alloc(size int) int {
	off := f.AllocaSize
	f.AllocaSize += size
	return off
}

// RecordArgSlot marks source n of ins as an incoming-argument offset that is
// relative to the caller's stack pointer until the frame is finalized.
func (f *Function) RecordArgSlot(ins *Instr, n int) {
	f.argSlots = append(f.argSlots, argSlot{ins: ins, src: n})
}

// NumInstrs counts instructions over all blocks.
func (f *Function) NumInstrs() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}

// Predecessors derives the predecessor lists from successor links.
func (f *Function) Predecessors() map[*Block][]*Block {
	preds := make(map[*Block][]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			preds[s] = append(preds[s], b)
		}
	}
	return preds
}

// DataKind selects the directive a global is emitted with.
type DataKind int

const (
	DataSpace DataKind = iota
	DataAsciiz
	DataWord
)

// Global is an entry of the data section.
type Global struct {
	Name  string
	Kind  DataKind
	Size  int     // DataSpace
	Text  string  // DataAsciiz
	Words []int32 // DataWord
}

// Module is a whole program.
type Module struct {
	Globals   []*Global
	Functions []*Function
}

// Function looks up a function by name.
func (m *Module) Function(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}
