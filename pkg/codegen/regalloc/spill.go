package regalloc

import (
	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/logger"
)

// segment tracks one short-lived replacement of a spilled operand.
type segment struct {
	tmp      mips.Operand
	firstUse int // index in the output of the first read, if it precedes any write
	lastDef  int // index in the output of the latest write
}

func (s *segment) reset() {
	s.tmp = nil
	s.firstUse = -1
	s.lastDef = -1
}

// rewriteSpills moves every spilled operand to its own stack slot. Each
// reference is renamed to a temporary that lives for at most flushEvery
// instructions; the temporary is loaded before its first read and stored
// after its last write. It returns the temporaries it introduced.
func rewriteSpills(fn *mips.Function, spilled []mips.Operand, flushEvery int) []mips.Operand {
	var temps []mips.Operand
	for _, op := range spilled {
		slot := int32(fn.Alloc(4))
		logger.Debug("Spilling operand", "function", fn.Name, "operand", op.String(), "slot", slot)

		for _, b := range fn.Blocks {
			out := make([]*mips.Instr, 0, len(b.Instrs)+2)
			var seg segment
			seg.reset()

			flush := func() {
				if seg.tmp == nil {
					return
				}
				// Insert the store first: it never precedes the load.
				if seg.lastDef >= 0 {
					out = insertAt(out, seg.lastDef+1, mips.NewStore(seg.tmp, mips.Fixed(mips.SP), slot))
				}
				if seg.firstUse >= 0 {
					out = insertAt(out, seg.firstUse, mips.NewLoad(seg.tmp, mips.Fixed(mips.SP), slot))
				}
				seg.reset()
			}

			count := 0
			for _, ins := range b.Instrs {
				reads, writes := ins.Reads(op), ins.Defines(op)
				out = append(out, ins)
				if reads || writes {
					if seg.tmp == nil {
						seg.tmp = fn.NewVReg()
						temps = append(temps, seg.tmp)
					}
					ins.ReplaceReg(op, seg.tmp)
					if reads && seg.firstUse < 0 && seg.lastDef < 0 {
						seg.firstUse = len(out) - 1
					}
					if writes {
						seg.lastDef = len(out) - 1
					}
				}
				count++
				if count >= flushEvery {
					flush()
					count = 0
				}
			}
			flush()
			b.Instrs = out
		}
	}
	return temps
}

func insertAt(instrs []*mips.Instr, i int, ins *mips.Instr) []*mips.Instr {
	instrs = append(instrs, nil)
	copy(instrs[i+1:], instrs[i:])
	instrs[i] = ins
	return instrs
}
