package isel

import (
	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
)

// immMode says which immediates an operand position accepts.
type immMode int

const (
	regOnly     immMode = iota // register required
	signedImm                  // signed 16-bit (arithmetic, compares, offsets)
	unsignedImm                // unsigned 16-bit (logical)
)

// funcContext carries the selection state of one function.
type funcContext struct {
	ir  *ir.Function
	fn  *mips.Function
	cur *mips.Block

	blocks map[*ir.Block]*mips.Block
	values map[ir.Value]mips.Operand
	// prologue collects argument and global materializations; it is placed
	// at the head of the entry block once the body is lowered.
	prologue []*mips.Instr
	// valueUse marks comparisons read by something other than a branch.
	valueUse map[*ir.ICmp]bool
}

func newFuncContext(irFn *ir.Function, fn *mips.Function) *funcContext {
	return &funcContext{
		ir:       irFn,
		fn:       fn,
		blocks:   make(map[*ir.Block]*mips.Block),
		values:   make(map[ir.Value]mips.Operand),
		valueUse: make(map[*ir.ICmp]bool),
	}
}

func (c *funcContext) emit(ins ...*mips.Instr) { c.cur.Append(ins...) }

// scanUses finds comparisons that need a materialized result.
func (c *funcContext) scanUses() {
	for _, b := range c.ir.Blocks {
		for _, ins := range b.Instrs {
			br, isBr := ins.(*ir.Br)
			for _, op := range ins.Operands() {
				cmp, ok := op.(*ir.ICmp)
				if !ok {
					continue
				}
				if isBr && br.Cond == op {
					continue
				}
				c.valueUse[cmp] = true
			}
		}
	}
}

func constOf(v ir.Value) (int32, bool) {
	if k, ok := v.(*ir.ConstInt); ok {
		return k.Val, true
	}
	return 0, false
}

// operand returns the machine operand holding v, materializing it when the
// position cannot take it directly.
func (c *funcContext) operand(v ir.Value, mode immMode) (mips.Operand, error) {
	switch v := v.(type) {
	case *ir.ConstInt:
		return c.constant(v.Val, mode), nil
	case *ir.GlobalVariable:
		if op, ok := c.values[v]; ok {
			return op, nil
		}
		r := c.fn.NewVReg()
		c.prologue = append(c.prologue, mips.NewMove(r, mips.Label{Name: v.Name()}))
		c.values[v] = r
		return r, nil
	case *ir.Argument:
		if op, ok := c.values[v]; ok {
			return op, nil
		}
		return c.argument(v), nil
	case ir.Instr:
		op, ok := c.values[v]
		if !ok {
			// Used before its definition was lowered.
			r := c.fn.NewVReg()
			c.values[v] = r
			return r, nil
		}
		if imm, ok := op.(mips.Imm); ok {
			return c.constant(imm.Value, mode), nil
		}
		return op, nil
	}
	return nil, errors.Errorf("unsupported operand %s", v.Name())
}

// argument copies an incoming parameter into a virtual register. Parameters
// past the fourth live in the caller's outgoing area, above this frame.
func (c *funcContext) argument(a *ir.Argument) mips.Operand {
	r := c.fn.NewVReg()
	if a.Index < len(mips.ArgRegs) {
		c.prologue = append(c.prologue, mips.NewMove(r, mips.Fixed(mips.ArgRegs[a.Index])))
	} else {
		ins := mips.NewLoad(r, mips.Fixed(mips.SP), int32(4*(a.Index-len(mips.ArgRegs))))
		c.fn.RecordArgSlot(ins, 1)
		c.prologue = append(c.prologue, ins)
	}
	c.values[a] = r
	return r
}

// constant returns v as an immediate if mode allows, else a register
// holding it.
func (c *funcContext) constant(v int32, mode immMode) mips.Operand {
	switch {
	case mode == signedImm && mips.Fits16(v), mode == unsignedImm && mips.FitsU16(v):
		return mips.Imm{Value: v}
	case v == 0:
		return mips.Fixed(mips.Zero)
	}
	r := c.fn.NewVReg()
	c.emit(mips.NewMove(r, mips.Imm{Value: v}))
	return r
}

// dst returns the register that receives v.
func (c *funcContext) dst(v ir.Value) mips.Operand {
	if op, ok := c.values[v]; ok {
		if _, isVReg := op.(mips.VReg); isVReg {
			return op
		}
	}
	r := c.fn.NewVReg()
	c.values[v] = r
	return r
}

// bind makes op the location of v without emitting code, unless an earlier
// forward reference already gave v a register.
func (c *funcContext) bind(v ir.Value, op mips.Operand) {
	prev, ok := c.values[v]
	if !ok {
		c.values[v] = op
		return
	}
	c.emit(mips.NewMove(prev, op))
}
