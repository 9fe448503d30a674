package mips

import "github.com/GriffinCanCode/mipsc/pkg/logger"

// Peephole removes instructions made redundant by register allocation and
// returns how many were dropped. It must run after colors are substituted.
func Peephole(f *Function) int {
	removed := 0
	for _, b := range f.Blocks {
		before := len(b.Instrs)
		b.Instrs = optimizeInstSequence(b.Instrs)
		removed += before - len(b.Instrs)
	}
	logger.LogOptimization("peephole:"+f.Name, removed)
	return removed
}

// optimizeInstSequence rewrites one block's instructions
func optimizeInstSequence(instrs []*Instr) []*Instr {
	result := make([]*Instr, 0, len(instrs))
	for i := 0; i < len(instrs); i++ {
		if !trySingleInstPattern(instrs[i]) {
			continue
		}
		if n := len(result); n > 0 && !tryTwoInstPattern(result[n-1], instrs[i]) {
			continue
		}
		result = append(result, instrs[i])
	}
	return result
}

// trySingleInstPattern reports whether ins must be kept
func trySingleInstPattern(ins *Instr) bool {
	// Pattern: move $r, $r  =>  (nothing)
	if ins.Op == OpMove && SameReg(ins.Dst, ins.Src[0]) {
		logger.Debug("Peephole: eliminated self move", "reg", ins.Dst.String())
		return false
	}
	return true
}

// tryTwoInstPattern reports whether second must be kept after first
func tryTwoInstPattern(first, second *Instr) bool {
	// Pattern: sw $r, off(base); lw $r, off(base)  =>  sw $r, off(base)
	if first.Op == OpStore && second.Op == OpLoad &&
		SameReg(first.Src[0], second.Dst) && sameAddress(first.Src[1], first.Src[2], second.Src[0], second.Src[1]) {
		logger.Debug("Peephole: eliminated reload after store", "reg", second.Dst.String())
		return false
	}

	// Pattern: lw $r, off(base); sw $r, off(base)  =>  lw $r, off(base)
	if first.Op == OpLoad && second.Op == OpStore &&
		SameReg(first.Dst, second.Src[0]) && sameAddress(first.Src[0], first.Src[1], second.Src[1], second.Src[2]) &&
		!SameReg(first.Dst, first.Src[0]) {
		logger.Debug("Peephole: eliminated store of reloaded value", "reg", first.Dst.String())
		return false
	}
	return true
}

func sameAddress(baseA, offA, baseB, offB Operand) bool {
	return SameReg(baseA, baseB) && offA == offB
}
