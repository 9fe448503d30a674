// Package isel implements instruction selection from IR to MIPS32.
//
// Design: a single pass over each function's blocks that emits code over an
// unbounded supply of virtual registers. Values are bound to operands through
// a per-function context; arguments and globals are materialized on first use
// in the entry block, and constants are folded into immediate fields when the
// encoding allows it.
package isel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
	"github.com/GriffinCanCode/mipsc/pkg/logger"
)

// Config controls selection.
type Config struct {
	Entry string // name of the program entry function
}

// DefaultConfig returns the default selection configuration.
func DefaultConfig() Config {
	return Config{Entry: "main"}
}

// Selector lowers IR to machine code.
type Selector struct {
	cfg Config
}

// New creates a selector.
func New(cfg Config) *Selector {
	if cfg.Entry == "" {
		cfg.Entry = DefaultConfig().Entry
	}
	return &Selector{cfg: cfg}
}

// Select lowers a whole module without register allocation.
func (s *Selector) Select(mod *ir.Module) (*mips.Module, error) {
	out := &mips.Module{}
	globals, err := s.Globals(mod)
	if err != nil {
		return nil, err
	}
	out.Globals = globals
	for _, fn := range mod.Functions {
		if fn.Library {
			continue
		}
		mf, err := s.Function(fn)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, mf)
	}
	return out, nil
}

// Globals lowers the module's global variables to data directives.
func (s *Selector) Globals(mod *ir.Module) ([]*mips.Global, error) {
	globals := make([]*mips.Global, 0, len(mod.Globals))
	for _, g := range mod.Globals {
		mg, err := lowerGlobal(g)
		if err != nil {
			return nil, errors.Wrapf(err, "isel: global %s", g.Name())
		}
		globals = append(globals, mg)
	}
	return globals, nil
}

func lowerGlobal(g *ir.GlobalVariable) (*mips.Global, error) {
	switch init := g.Init.(type) {
	case *ir.ConstString:
		return &mips.Global{Name: g.Name(), Kind: mips.DataAsciiz, Text: init.Text}, nil
	case *ir.ZeroInitializer:
		size, err := ir.SizeOf(init.Typ)
		if err != nil {
			return nil, err
		}
		return &mips.Global{Name: g.Name(), Kind: mips.DataSpace, Size: size}, nil
	default:
		words, err := flatten(init)
		if err != nil {
			return nil, err
		}
		return &mips.Global{Name: g.Name(), Kind: mips.DataWord, Words: words}, nil
	}
}

// flatten lists the words of a scalar or (nested) array initializer.
func flatten(c ir.Constant) ([]int32, error) {
	switch c := c.(type) {
	case *ir.ConstInt:
		return []int32{c.Val}, nil
	case *ir.ZeroInitializer:
		size, err := ir.SizeOf(c.Typ)
		if err != nil {
			return nil, err
		}
		return make([]int32, size/4), nil
	case *ir.ConstArray:
		var words []int32
		for _, e := range c.Elems {
			w, err := flatten(e)
			if err != nil {
				return nil, err
			}
			words = append(words, w...)
		}
		return words, nil
	}
	return nil, errors.Errorf("unsupported initializer %s", c.Name())
}

// Function lowers one function and lays out its blocks.
func (s *Selector) Function(fn *ir.Function) (*mips.Function, error) {
	if fn.Library {
		return nil, errors.Errorf("isel: %s is a library function", fn.Name)
	}
	if len(fn.Blocks) == 0 {
		return nil, errors.Errorf("isel: %s has no body", fn.Name)
	}
	logger.Debug("Selecting instructions", "function", fn.Name, "blocks", len(fn.Blocks))

	c := newFuncContext(fn, mips.NewFunction(fn.Name, fn.Name == s.cfg.Entry))
	taken := make(map[string]bool)
	for i, b := range fn.Blocks {
		label := blockLabel(fn.Name, b.Name, i, taken)
		c.blocks[b] = c.fn.NewBlock(label, b.LoopDepth)
	}
	for _, b := range fn.Blocks {
		mb := c.blocks[b]
		for _, succ := range b.Succs() {
			mb.Succs = append(mb.Succs, c.blocks[succ])
		}
	}
	c.scanUses()

	for _, b := range fn.Blocks {
		c.cur = c.blocks[b]
		for _, ins := range b.Instrs {
			if err := c.lower(ins); err != nil {
				return nil, errors.Wrapf(err, "isel: %s: %s", fn.Name, b.Name)
			}
		}
	}

	entry := c.blocks[fn.Blocks[0]]
	entry.Instrs = append(c.prologue, entry.Instrs...)
	c.fn.Layout()

	logger.LogSelection(c.fn.Name, len(c.fn.Blocks), c.fn.NumInstrs())
	return c.fn, nil
}

// blockLabel derives a module-unique assembly label for a block.
func blockLabel(fn, block string, index int, taken map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return '_'
	}, block)
	label := fmt.Sprintf("%s_%s", fn, name)
	if name == "" || taken[label] {
		label = fmt.Sprintf("%s_b%d", fn, index)
	}
	taken[label] = true
	return label
}
