package isel

import (
	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
)

// services maps runtime library functions to simulator system calls.
var services = map[string]int{
	"putint":  1,
	"putstr":  4,
	"getint":  5,
	"putch":   11,
	"getchar": 12,
}

// Service returns the system call number of a library function.
func Service(name string) (int, bool) {
	n, ok := services[name]
	return n, ok
}

// lowerCall passes the first four arguments in $a0-$a3 and pushes the rest
// below the stack pointer, the last argument nearest the caller's frame.
func (c *funcContext) lowerCall(i *ir.Call) error {
	callee := i.Callee
	n := len(i.Args)

	var argRegs []mips.Operand
	for k, a := range i.Args {
		if k < len(mips.ArgRegs) {
			src, err := c.operand(a, signedImm)
			if err != nil {
				return err
			}
			r := mips.Fixed(mips.ArgRegs[k])
			c.emit(mips.NewMove(r, src))
			argRegs = append(argRegs, r)
			continue
		}
		src, err := c.operand(a, regOnly)
		if err != nil {
			return err
		}
		c.emit(mips.NewStore(src, mips.Fixed(mips.SP), int32(-4*(n-k))))
	}

	sp := mips.Fixed(mips.SP)
	pushed := int32(4 * (n - len(mips.ArgRegs)))
	if pushed > 0 {
		c.emit(mips.NewBinary(mips.OpAddu, sp, sp, mips.Imm{Value: -pushed}))
	}

	var call *mips.Instr
	if callee.Library {
		svc, ok := Service(callee.Name)
		if !ok {
			return errors.Errorf("unknown library function %s", callee.Name)
		}
		call = mips.NewSyscall(svc)
	} else {
		call = mips.NewCall(callee.Name)
		call.AddDef(mips.Fixed(mips.RA))
	}
	for _, r := range mips.ArgRegs {
		call.AddDef(mips.Fixed(r))
	}
	call.AddDef(mips.Fixed(mips.V0))
	for _, r := range argRegs {
		call.AddUse(r)
	}
	c.emit(call)

	if pushed > 0 {
		c.emit(mips.NewBinary(mips.OpAddu, sp, sp, mips.Imm{Value: pushed}))
	}
	if _, void := callee.Ret.(ir.VoidType); !void {
		c.emit(mips.NewMove(c.dst(i), mips.Fixed(mips.V0)))
	}
	return nil
}
