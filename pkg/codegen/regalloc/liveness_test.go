package regalloc

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
)

func assertSet(t *testing.T, got OperandSet, want ...mips.Operand) {
	t.Helper()
	assert.Assert(t, got.Equal(newOperandSet(want...)), "got %s, want %v", got, want)
}

func ret(fn *mips.Function, uses ...mips.Operand) *mips.Instr {
	r := mips.NewRet(fn)
	for _, u := range uses {
		r.AddUse(u)
	}
	return r
}

func TestLivenessChain(t *testing.T) {
	fn := mips.NewFunction("f", false)
	b0 := fn.NewBlock("f_b0", 0)
	b1 := fn.NewBlock("f_b1", 0)
	b2 := fn.NewBlock("f_b2", 0)
	v0, v1, v2 := fn.NewVReg(), fn.NewVReg(), fn.NewVReg()
	rv := mips.Fixed(mips.V0)

	b0.Append(mips.NewMove(v0, mips.Imm{Value: 1}), mips.NewMove(v1, mips.Imm{Value: 2}))
	b0.Succs = []*mips.Block{b1}
	b1.Append(mips.NewBinary(mips.OpAddu, v2, v0, mips.Imm{Value: 5}))
	b1.Succs = []*mips.Block{b2}
	b2.Append(mips.NewBinary(mips.OpAddu, rv, v2, v1), ret(fn, rv))

	live := AnalyzeLiveness(fn)
	assertSet(t, live[b0].In)
	assertSet(t, live[b0].Def, v0, v1)
	assertSet(t, live[b0].Out, v0, v1)
	assertSet(t, live[b1].Use, v0)
	assertSet(t, live[b1].In, v0, v1)
	assertSet(t, live[b1].Out, v1, v2)
	assertSet(t, live[b2].Use, v2, v1)
	assertSet(t, live[b2].In, v1, v2)
	assertSet(t, live[b2].Out)
}

func TestLivenessDiamond(t *testing.T) {
	fn := mips.NewFunction("f", false)
	entry := fn.NewBlock("f_entry", 0)
	then := fn.NewBlock("f_then", 0)
	els := fn.NewBlock("f_else", 0)
	done := fn.NewBlock("f_done", 0)
	v0, v1, v2 := fn.NewVReg(), fn.NewVReg(), fn.NewVReg()
	rv := mips.Fixed(mips.V0)

	entry.Append(
		mips.NewMove(v0, mips.Imm{Value: 1}),
		mips.NewMove(v1, mips.Imm{Value: 2}),
		mips.NewBranch(mips.CondNe, v0, mips.Imm{Value: 0}, then),
	)
	entry.Succs = []*mips.Block{then, els}
	then.Append(mips.NewBinary(mips.OpAddu, v2, v1, mips.Imm{Value: 1}), mips.NewJump(done))
	then.Succs = []*mips.Block{done}
	els.Append(mips.NewMove(v2, mips.Imm{Value: 0}))
	els.Succs = []*mips.Block{done}
	done.Append(mips.NewBinary(mips.OpAddu, rv, v2, v0), ret(fn, rv))

	live := AnalyzeLiveness(fn)
	assertSet(t, live[done].In, v0, v2)
	assertSet(t, live[then].In, v0, v1)
	assertSet(t, live[els].In, v0)
	assertSet(t, live[entry].Out, v0, v1)
	assertSet(t, live[entry].In)
}

func TestLivenessLoop(t *testing.T) {
	fn := mips.NewFunction("f", false)
	entry := fn.NewBlock("f_entry", 0)
	cond := fn.NewBlock("f_cond", 1)
	body := fn.NewBlock("f_body", 1)
	exit := fn.NewBlock("f_exit", 0)
	i, n := fn.NewVReg(), fn.NewVReg()
	rv := mips.Fixed(mips.V0)

	entry.Append(mips.NewMove(i, mips.Imm{Value: 0}), mips.NewMove(n, mips.Imm{Value: 10}))
	entry.Succs = []*mips.Block{cond}
	cond.Append(mips.NewBranch(mips.CondLt, i, n, body))
	cond.Succs = []*mips.Block{body, exit}
	body.Append(mips.NewBinary(mips.OpAddu, i, i, mips.Imm{Value: 1}), mips.NewJump(cond))
	body.Succs = []*mips.Block{cond}
	exit.Append(mips.NewMove(rv, i), ret(fn, rv))

	live := AnalyzeLiveness(fn)
	assertSet(t, live[cond].In, i, n)
	assertSet(t, live[cond].Out, i, n)
	assertSet(t, live[body].Out, i, n)
	assertSet(t, live[exit].In, i)
	assertSet(t, live[entry].In)
}
