package mips

import (
	"testing"

	"gotest.tools/v3/assert"
)

func reg(r Reg) PReg { return PReg{Reg: r, Allocated: true} }

func TestFinalizeFrame(t *testing.T) {
	f := NewFunction("f", false)
	b := f.NewBlock("f_b0", 0)
	assert.Equal(t, f.Alloc(8), 0)

	arg := NewLoad(reg(T0), Fixed(SP), 0)
	f.RecordArgSlot(arg, 1)
	b.Append(
		arg,
		NewMove(reg(S1), reg(T0)),
		NewMove(reg(S0), Imm{Value: 1}),
		NewMove(Fixed(V0), reg(S1)),
		NewRet(f),
	)

	f.FinalizeFrame()
	assert.DeepEqual(t, f.Saved, []Reg{T0, S0, S1})
	assert.Equal(t, f.FrameSize, 20)
	assert.Equal(t, arg.String(), "lw\t$t0, 20($sp)")

	// A second call must not shift argument offsets again.
	f.FinalizeFrame()
	assert.Equal(t, arg.String(), "lw\t$t0, 20($sp)")

	assert.Equal(t, f.prologue(),
		"\tsw\t$t0, -4($sp)\n\tsw\t$s0, -8($sp)\n\tsw\t$s1, -12($sp)\n\taddiu\t$sp, $sp, -20\n")
	assert.Equal(t, b.Last().String(),
		"addiu\t$sp, $sp, 20\n\tlw\t$t0, -4($sp)\n\tlw\t$s0, -8($sp)\n\tlw\t$s1, -12($sp)\n\tjr\t$ra")
	assert.DeepEqual(t, f.SavedNames(), []string{"$t0", "$s0", "$s1"})
}

func TestFinalizeFrameEntry(t *testing.T) {
	f := NewFunction("main", true)
	b := f.NewBlock("main_b0", 0)
	f.Alloc(4)
	b.Append(NewMove(reg(S0), Imm{Value: 1}), NewRet(f))

	f.FinalizeFrame()
	assert.Equal(t, len(f.Saved), 0)
	assert.Equal(t, f.FrameSize, 4)
	assert.Equal(t, f.prologue(), "\taddiu\t$sp, $sp, -4\n")
	assert.Equal(t, b.Last().String(), "addiu\t$sp, $sp, 4\n\tli\t$v0, 10\n\tsyscall")
}

func TestFinalizeFrameLeaf(t *testing.T) {
	f := NewFunction("leaf", false)
	b := f.NewBlock("leaf_b0", 0)
	b.Append(NewMove(Fixed(V0), Fixed(A0)), NewRet(f))

	f.FinalizeFrame()
	assert.Equal(t, f.FrameSize, 0)
	assert.Equal(t, f.prologue(), "")
	assert.Equal(t, b.Last().String(), "jr\t$ra")
}
