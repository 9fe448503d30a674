package regalloc

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
)

// OperandSet is a set of register operands.
type OperandSet = mapset.Set[mips.Operand]

func newOperandSet(ops ...mips.Operand) OperandSet {
	return mapset.NewThreadUnsafeSet[mips.Operand](ops...)
}

// LiveInfo holds the dataflow sets of one block.
type LiveInfo struct {
	Use OperandSet // read before any write in the block
	Def OperandSet // written in the block
	In  OperandSet
	Out OperandSet
}

// Liveness maps every block of a function to its sets.
type Liveness map[*mips.Block]*LiveInfo

// AnalyzeLiveness computes block-level liveness over the operands the
// allocator colors. It must be rerun whenever the instruction stream changes.
func AnalyzeLiveness(fn *mips.Function) Liveness {
	live := make(Liveness, len(fn.Blocks))
	for _, b := range fn.Blocks {
		info := &LiveInfo{Use: newOperandSet(), Def: newOperandSet(), Out: newOperandSet()}
		for _, ins := range b.Instrs {
			for _, u := range ins.Uses() {
				if u.NeedsColoring() && !info.Def.Contains(u) {
					info.Use.Add(u)
				}
			}
			for _, d := range ins.Defs() {
				if d.NeedsColoring() {
					info.Def.Add(d)
				}
			}
		}
		info.In = info.Use.Clone()
		live[b] = info
	}

	// Worklist fixed point; blocks are seeded in reverse so most of the
	// information flows in one sweep.
	preds := fn.Predecessors()
	queued := make(map[*mips.Block]bool, len(fn.Blocks))
	work := make([]*mips.Block, 0, len(fn.Blocks))
	for i := len(fn.Blocks) - 1; i >= 0; i-- {
		work = append(work, fn.Blocks[i])
		queued[fn.Blocks[i]] = true
	}
	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		queued[b] = false

		info := live[b]
		out := newOperandSet()
		for _, s := range b.Succs {
			if si, ok := live[s]; ok {
				out = out.Union(si.In)
			}
		}
		if out.Equal(info.Out) {
			continue
		}
		info.Out = out
		in := info.Use.Union(out.Difference(info.Def))
		if in.Equal(info.In) {
			continue
		}
		info.In = in
		for _, p := range preds[b] {
			if !queued[p] {
				queued[p] = true
				work = append(work, p)
			}
		}
	}
	return live
}
