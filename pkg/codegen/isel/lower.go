package isel

import (
	"math"

	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
)

var condMap = map[ir.Cond]mips.Cond{
	ir.CondEq:  mips.CondEq,
	ir.CondNe:  mips.CondNe,
	ir.CondSlt: mips.CondLt,
	ir.CondSle: mips.CondLe,
	ir.CondSgt: mips.CondGt,
	ir.CondSge: mips.CondGe,
}

func (c *funcContext) lower(ins ir.Instr) error {
	switch i := ins.(type) {
	case *ir.Binary:
		return c.lowerBinary(i)
	case *ir.ICmp:
		return c.lowerICmp(i)
	case *ir.Zext:
		return c.lowerZext(i)
	case *ir.Trunc:
		return c.lowerTrunc(i)
	case *ir.Alloca:
		return c.lowerAlloca(i)
	case *ir.Load:
		return c.lowerLoad(i)
	case *ir.Store:
		return c.lowerStore(i)
	case *ir.GEP:
		return c.lowerGEP(i)
	case *ir.Call:
		return c.lowerCall(i)
	case *ir.Br:
		return c.lowerBr(i)
	case *ir.Ret:
		return c.lowerRet(i)
	}
	return errors.Errorf("cannot select %T", ins)
}

// fold evaluates op on two constants with 32-bit wraparound. Division that
// would trap is left to run time.
func fold(op ir.BinOp, x, y int32) (int32, bool) {
	switch op {
	case ir.OpAdd:
		return x + y, true
	case ir.OpSub:
		return x - y, true
	case ir.OpMul:
		return x * y, true
	case ir.OpSDiv, ir.OpSRem:
		if y == 0 || x == math.MinInt32 && y == -1 {
			return 0, false
		}
		if op == ir.OpSDiv {
			return x / y, true
		}
		return x % y, true
	}
	return 0, false
}

func (c *funcContext) lowerBinary(i *ir.Binary) error {
	x, xc := constOf(i.X)
	y, yc := constOf(i.Y)
	if xc && yc {
		if v, ok := fold(i.Op, x, y); ok {
			c.emit(mips.NewMove(c.dst(i), mips.Imm{Value: v}))
			return nil
		}
	}

	switch i.Op {
	case ir.OpAdd, ir.OpMul:
		a, b := i.X, i.Y
		if xc && !yc {
			a, b = b, a
		}
		rs, err := c.operand(a, regOnly)
		if err != nil {
			return err
		}
		rt, err := c.operand(b, signedImm)
		if err != nil {
			return err
		}
		op := mips.OpAddu
		if i.Op == ir.OpMul {
			op = mips.OpMul
		}
		c.emit(mips.NewBinary(op, c.dst(i), rs, rt))

	case ir.OpSub:
		rs, err := c.operand(i.X, regOnly)
		if err != nil {
			return err
		}
		if yc {
			// x - k == x + (-k), also when -k wraps.
			c.emit(mips.NewBinary(mips.OpAddu, c.dst(i), rs, c.constant(-y, signedImm)))
			return nil
		}
		rt, err := c.operand(i.Y, regOnly)
		if err != nil {
			return err
		}
		c.emit(mips.NewBinary(mips.OpSubu, c.dst(i), rs, rt))

	case ir.OpSDiv, ir.OpSRem:
		if i.Op == ir.OpSRem && yc && (y == 1 || y == -1) {
			c.bind(i, mips.Fixed(mips.Zero))
			return nil
		}
		rs, err := c.operand(i.X, regOnly)
		if err != nil {
			return err
		}
		rt, err := c.operand(i.Y, regOnly)
		if err != nil {
			return err
		}
		op := mips.OpDiv
		if i.Op == ir.OpSRem {
			op = mips.OpRem
		}
		c.emit(mips.NewBinary(op, c.dst(i), rs, rt))

	default:
		return errors.Errorf("unsupported binary operator %s", i.Op)
	}
	return nil
}

func (c *funcContext) lowerICmp(i *ir.ICmp) error {
	if !c.valueUse[i] {
		// Fused into the branches that read it.
		return nil
	}
	x, xc := constOf(i.X)
	y, yc := constOf(i.Y)
	if xc && yc {
		var v int32
		if i.Cond.Eval(x, y) {
			v = 1
		}
		c.bind(i, mips.Imm{Value: v})
		return nil
	}
	rs, err := c.operand(i.X, regOnly)
	if err != nil {
		return err
	}
	rt, err := c.operand(i.Y, regOnly)
	if err != nil {
		return err
	}
	c.emit(mips.NewSet(condMap[i.Cond], c.dst(i), rs, rt))
	return nil
}

func (c *funcContext) lowerZext(i *ir.Zext) error {
	src, err := c.operand(i.X, signedImm)
	if err != nil {
		return err
	}
	c.emit(mips.NewMove(c.dst(i), src))
	return nil
}

func (c *funcContext) lowerTrunc(i *ir.Trunc) error {
	bits := i.Type().(ir.IntType).Bits
	if bits >= 32 {
		src, err := c.operand(i.X, signedImm)
		if err != nil {
			return err
		}
		c.emit(mips.NewMove(c.dst(i), src))
		return nil
	}
	mask := int32(1)<<uint(bits) - 1
	if x, ok := constOf(i.X); ok {
		c.emit(mips.NewMove(c.dst(i), mips.Imm{Value: x & mask}))
		return nil
	}
	rs, err := c.operand(i.X, regOnly)
	if err != nil {
		return err
	}
	c.emit(mips.NewBinary(mips.OpAnd, c.dst(i), rs, c.constant(mask, unsignedImm)))
	return nil
}

func (c *funcContext) lowerAlloca(i *ir.Alloca) error {
	size, err := ir.SizeOf(i.Allocated)
	if err != nil {
		return err
	}
	off := int32(c.fn.Alloc(size))
	c.emit(mips.NewBinary(mips.OpAddu, c.dst(i), mips.Fixed(mips.SP), c.constant(off, signedImm)))
	return nil
}

func (c *funcContext) lowerLoad(i *ir.Load) error {
	base, err := c.operand(i.Ptr, regOnly)
	if err != nil {
		return err
	}
	c.emit(mips.NewLoad(c.dst(i), base, 0))
	return nil
}

func (c *funcContext) lowerStore(i *ir.Store) error {
	val, err := c.operand(i.Val, regOnly)
	if err != nil {
		return err
	}
	base, err := c.operand(i.Ptr, regOnly)
	if err != nil {
		return err
	}
	c.emit(mips.NewStore(val, base, 0))
	return nil
}

// strides returns the byte size stepped by each GEP index.
func strides(i *ir.GEP) ([]int32, error) {
	pointee := ir.Elem(i.Base.Type())
	if pointee == nil {
		return nil, errors.Errorf("getelementptr base %s is not a pointer", i.Base.Name())
	}
	outer, err := ir.SizeOf(pointee)
	if err != nil {
		return nil, err
	}
	switch len(i.Indices) {
	case 1:
		return []int32{int32(outer)}, nil
	case 2:
		arr, ok := pointee.(ir.ArrayType)
		if !ok {
			return nil, errors.Errorf("getelementptr with two indices on %s", pointee)
		}
		inner, err := ir.SizeOf(arr.Elem)
		if err != nil {
			return nil, err
		}
		return []int32{int32(outer), int32(inner)}, nil
	}
	return nil, errors.Errorf("getelementptr with %d indices", len(i.Indices))
}

func (c *funcContext) lowerGEP(i *ir.GEP) error {
	sizes, err := strides(i)
	if err != nil {
		return err
	}
	base, err := c.operand(i.Base, regOnly)
	if err != nil {
		return err
	}

	var total int32
	allConst := true
	for k, idx := range i.Indices {
		if v, ok := constOf(idx); ok {
			total += v * sizes[k]
		} else {
			allConst = false
		}
	}
	if allConst {
		if total == 0 {
			c.bind(i, base)
			return nil
		}
		c.emit(mips.NewBinary(mips.OpAddu, c.dst(i), base, c.constant(total, signedImm)))
		return nil
	}

	dst := c.dst(i)
	cur := base
	for k, idx := range i.Indices {
		if v, ok := constOf(idx); ok {
			if off := v * sizes[k]; off != 0 {
				c.emit(mips.NewBinary(mips.OpAddu, dst, cur, c.constant(off, signedImm)))
				cur = dst
			}
			continue
		}
		r, err := c.operand(idx, regOnly)
		if err != nil {
			return err
		}
		scaled := c.fn.NewVReg()
		c.emit(
			mips.NewBinary(mips.OpMul, scaled, r, c.constant(sizes[k], signedImm)),
			mips.NewBinary(mips.OpAddu, dst, cur, scaled),
		)
		cur = dst
	}
	return nil
}

func (c *funcContext) lowerBr(i *ir.Br) error {
	target := c.blocks[i.True]
	if i.Cond == nil {
		c.emit(mips.NewJump(target))
		return nil
	}

	if cmp, ok := i.Cond.(*ir.ICmp); ok {
		x, xc := constOf(cmp.X)
		y, yc := constOf(cmp.Y)
		if xc && yc {
			if cmp.Cond.Eval(x, y) {
				c.emit(mips.NewJump(target))
			}
			return nil
		}
		rs, err := c.operand(cmp.X, regOnly)
		if err != nil {
			return err
		}
		rt, err := c.operand(cmp.Y, signedImm)
		if err != nil {
			return err
		}
		c.emit(mips.NewBranch(condMap[cmp.Cond], rs, rt, target))
		return nil
	}

	if v, ok := constOf(i.Cond); ok {
		if v != 0 {
			c.emit(mips.NewJump(target))
		}
		return nil
	}
	r, err := c.operand(i.Cond, regOnly)
	if err != nil {
		return err
	}
	c.emit(mips.NewBranch(mips.CondNe, r, mips.Fixed(mips.Zero), target))
	return nil
}

func (c *funcContext) lowerRet(i *ir.Ret) error {
	ret := mips.NewRet(c.fn)
	if i.Val != nil {
		src, err := c.operand(i.Val, signedImm)
		if err != nil {
			return err
		}
		v0 := mips.Fixed(mips.V0)
		c.emit(mips.NewMove(v0, src))
		ret.AddUse(v0)
	}
	c.emit(ret)
	return nil
}
