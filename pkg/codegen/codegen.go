// Package codegen drives the MIPS32 back end.
//
// Design: each function goes through selection, block layout, register
// allocation, peephole cleanup and frame finalization on its own; the module
// is then printed as one MARS assembly program and optionally checked by the
// validator.
package codegen

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/isel"
	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
	"github.com/GriffinCanCode/mipsc/pkg/logger"
)

// Generator writes MIPS assembly for IR modules.
type Generator struct {
	w   io.Writer
	cfg Config
}

// NewGenerator creates a generator writing to w.
func NewGenerator(w io.Writer, cfg Config) *Generator {
	return &Generator{w: w, cfg: cfg}
}

// Generate compiles mod and writes the assembly.
func (g *Generator) Generate(mod *ir.Module) error {
	logger.Info("Generating MIPS32 assembly", "functions", len(mod.Functions), "globals", len(mod.Globals))

	out, err := Lower(mod, g.cfg)
	if err != nil {
		return err
	}

	var sb strings.Builder
	if _, err := out.WriteTo(&sb); err != nil {
		return errors.Wrap(err, "emit assembly")
	}
	asm := sb.String()

	if g.cfg.Validate {
		logger.LogPhase("validate")
		if err := mips.ValidateProgram(asm); err != nil {
			return errors.Wrap(err, "generated assembly failed validation")
		}
		logger.LogPhaseComplete("validate")
	}

	if _, err := io.WriteString(g.w, asm); err != nil {
		return errors.Wrap(err, "write assembly")
	}
	return nil
}

// Lower runs the back end over every function of mod.
func Lower(mod *ir.Module, cfg Config) (*mips.Module, error) {
	if cfg.Entry == "" {
		cfg.Entry = DefaultConfig().Entry
	}
	if fn := mod.Function(cfg.Entry); fn == nil || fn.Library {
		return nil, errors.Errorf("entry function %s is not defined", cfg.Entry)
	}

	sel := isel.New(isel.Config{Entry: cfg.Entry})
	out := &mips.Module{}

	logger.LogPhase("globals")
	globals, err := sel.Globals(mod)
	if err != nil {
		return nil, err
	}
	out.Globals = globals

	for _, fn := range mod.Functions {
		if fn.Library {
			continue
		}
		mf, err := compileFunction(sel, fn, cfg)
		if err != nil {
			logger.LogError("codegen", fn.Name, err)
			return nil, err
		}
		out.Functions = append(out.Functions, mf)
	}
	logger.LogPhaseComplete("codegen")
	return out, nil
}

func compileFunction(sel *isel.Selector, fn *ir.Function, cfg Config) (*mips.Function, error) {
	mf, err := sel.Function(fn)
	if err != nil {
		return nil, err
	}

	stats, err := regalloc.Allocate(mf, cfg.Regalloc)
	if err != nil {
		return nil, err
	}
	logger.Debug("Register allocation complete",
		"function", mf.Name,
		"rounds", stats.Rounds,
		"spilled", stats.Spilled,
		"coalesced", stats.Coalesced)

	if cfg.Peephole {
		mips.Peephole(mf)
	}

	mf.FinalizeFrame()
	logger.LogFrame(mf.Name, mf.FrameSize, mf.SavedNames())
	return mf, nil
}

// Compile is a convenience wrapper around NewGenerator and Generate.
func Compile(mod *ir.Module, cfg Config, w io.Writer) error {
	return NewGenerator(w, cfg).Generate(mod)
}
