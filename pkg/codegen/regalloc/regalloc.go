package regalloc

import (
	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/logger"
)

// Config holds register allocation configuration
type Config struct {
	Registers     []mips.Reg // Colors, in preference order
	FlushInterval int        // Max instructions a spill temporary stays live
	MaxRounds     int        // Allocate/rewrite rounds before giving up
	Coalesce      bool       // Coalesce moves; off freezes every move up front
}

// DefaultConfig returns the configuration for the MIPS32 ABI used here
func DefaultConfig() Config {
	return Config{
		Registers:     append([]mips.Reg(nil), mips.Allocatable...),
		FlushInterval: 30,
		MaxRounds:     64,
		Coalesce:      true,
	}
}

// Stats summarizes allocation of one function
type Stats struct {
	Rounds    int
	Spilled   int
	Coalesced int
}

// Allocate assigns a physical register to every virtual register of fn,
// rewriting spilled operands into stack traffic until a round succeeds.
func Allocate(fn *mips.Function, cfg Config) (Stats, error) {
	var stats Stats
	if len(cfg.Registers) == 0 {
		return stats, errors.Errorf("regalloc: %s: no allocatable registers", fn.Name)
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	logger.Debug("Starting register allocation", "function", fn.Name, "k", len(cfg.Registers))

	temps := make(map[mips.Operand]bool)
	for round := 1; ; round++ {
		if cfg.MaxRounds > 0 && round > cfg.MaxRounds {
			return stats, errors.Errorf("regalloc: %s: still spilling after %d rounds", fn.Name, cfg.MaxRounds)
		}
		stats.Rounds = round

		live := AnalyzeLiveness(fn)
		g := BuildGraph(fn, live)
		res := newAllocator(g, cfg.Registers, cfg.Coalesce, temps).run()
		logger.LogAllocRound(fn.Name, round, g.NumNodes(), len(res.spilled))

		if len(res.spilled) == 0 {
			stats.Coalesced = res.coalesced
			applyColors(fn, g, res)
			return stats, nil
		}

		spilled := make([]mips.Operand, len(res.spilled))
		for i, n := range res.spilled {
			spilled[i] = g.nodes[n]
		}
		stats.Spilled += len(spilled)
		for _, t := range rewriteSpills(fn, spilled, cfg.FlushInterval) {
			temps[t] = true
		}
	}
}

// applyColors replaces every virtual register with its color.
func applyColors(fn *mips.Function, g *Graph, res *coloring) {
	for _, b := range fn.Blocks {
		for _, ins := range b.Instrs {
			regs := append(append([]mips.Operand(nil), ins.Defs()...), ins.Uses()...)
			for _, o := range regs {
				if _, ok := o.(mips.VReg); !ok {
					continue
				}
				n, ok := g.index[o]
				if !ok {
					continue
				}
				if reg, ok := res.colors[n]; ok {
					ins.ReplaceReg(o, mips.PReg{Reg: reg, Allocated: true})
				}
			}
		}
	}
}
