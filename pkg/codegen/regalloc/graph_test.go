package regalloc

import (
	"fmt"
	"math"
	"testing"

	"gotest.tools/v3/assert"
	"pgregory.net/rapid"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
)

func TestBuildGraphInterference(t *testing.T) {
	fn := mips.NewFunction("f", false)
	b := fn.NewBlock("f_b0", 0)
	v0, v1, v2 := fn.NewVReg(), fn.NewVReg(), fn.NewVReg()
	rv := mips.Fixed(mips.V0)
	b.Append(
		mips.NewMove(v0, mips.Imm{Value: 1}),
		mips.NewMove(v1, mips.Imm{Value: 2}),
		mips.NewBinary(mips.OpAddu, v2, v0, v1),
		mips.NewMove(rv, v2),
		ret(fn, rv),
	)

	g := BuildGraph(fn, AnalyzeLiveness(fn))
	assert.Assert(t, g.Interferes(v0, v1))
	assert.Assert(t, g.Interferes(v1, v0))
	assert.Assert(t, !g.Interferes(v2, v0))
	assert.Assert(t, !g.Interferes(v2, rv))
	assert.Equal(t, g.NumNodes(), 4)
	assert.Equal(t, g.NumMoves(), 1)
	assert.Equal(t, g.Degree(v0), 1)
	assert.Equal(t, g.Degree(rv), math.MaxInt32)
	assert.Equal(t, g.Degree(mips.VReg{ID: 99}), -1)
}

func TestBuildGraphMoveSourceDoesNotInterfere(t *testing.T) {
	fn := mips.NewFunction("f", false)
	b := fn.NewBlock("f_b0", 0)
	v0, v1, v2 := fn.NewVReg(), fn.NewVReg(), fn.NewVReg()
	rv := mips.Fixed(mips.V0)
	b.Append(
		mips.NewMove(v0, mips.Imm{Value: 1}),
		mips.NewMove(v1, v0),
		mips.NewBinary(mips.OpAddu, v2, v1, v0),
		mips.NewMove(rv, v2),
		ret(fn, rv),
	)

	g := BuildGraph(fn, AnalyzeLiveness(fn))
	assert.Assert(t, !g.Interferes(v0, v1))
	assert.Equal(t, g.NumMoves(), 2)
}

func TestBuildGraphCallClobbers(t *testing.T) {
	fn := mips.NewFunction("f", false)
	b := fn.NewBlock("f_b0", 0)
	v0, v1 := fn.NewVReg(), fn.NewVReg()
	rv := mips.Fixed(mips.V0)
	call := mips.NewCall("g")
	call.AddDef(mips.Fixed(mips.RA))
	call.AddDef(rv)
	b.Append(
		mips.NewMove(v0, mips.Imm{Value: 1}),
		call,
		mips.NewMove(v1, rv),
		mips.NewBinary(mips.OpAddu, rv, v0, v1),
		ret(fn, rv),
	)

	g := BuildGraph(fn, AnalyzeLiveness(fn))
	assert.Assert(t, g.Interferes(v0, rv))
	assert.Assert(t, g.Interferes(v0, mips.Fixed(mips.RA)))
	assert.Assert(t, !g.Interferes(v1, rv))
}

// genProgram draws a straight-line function over a handful of registers.
func genProgram(t *rapid.T) *mips.Function {
	fn := mips.NewFunction("f", false)
	b := fn.NewBlock("f_b0", 0)
	n := rapid.IntRange(1, 8).Draw(t, "vregs")
	regs := make([]mips.Operand, n)
	for i := range regs {
		regs[i] = fn.NewVReg()
		b.Append(mips.NewMove(regs[i], mips.Imm{Value: int32(i)}))
	}
	pick := func(label string) mips.Operand { return regs[rapid.IntRange(0, n-1).Draw(t, label)] }

	steps := rapid.IntRange(0, 30).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		switch rapid.IntRange(0, 2).Draw(t, "kind") {
		case 0:
			b.Append(mips.NewMove(pick("dst"), pick("src")))
		case 1:
			b.Append(mips.NewBinary(mips.OpAddu, pick("dst"), pick("x"), pick("y")))
		default:
			b.Append(mips.NewMove(pick("dst"), mips.Imm{Value: 7}))
		}
	}

	r := mips.NewRet(fn)
	for i, reg := range regs {
		if rapid.Bool().Draw(t, fmt.Sprintf("live%d", i)) {
			r.AddUse(reg)
		}
	}
	b.Append(r)
	return fn
}

func TestInterferenceSoundness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fn := genProgram(t)
		g := BuildGraph(fn, AnalyzeLiveness(fn))

		b := fn.Blocks[0]
		live := make(map[mips.Operand]bool)
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			ins := b.Instrs[i]
			for _, d := range ins.Defs() {
				for l := range live {
					if l == d || ins.IsRegMove() && l == ins.Src[0] {
						continue
					}
					if !g.Interferes(d, l) {
						t.Fatalf("%s is written by %q while %s is live, but they do not interfere", d, ins, l)
					}
				}
			}
			for _, d := range ins.Defs() {
				delete(live, d)
			}
			for _, u := range ins.Uses() {
				live[u] = true
			}
		}
	})
}
