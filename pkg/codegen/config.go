package codegen

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/codegen/regalloc"
)

// Config holds back end configuration
type Config struct {
	Entry    string // Function the program starts in
	Validate bool   // Check the emitted assembly before writing it
	Peephole bool   // Run the post-allocation peephole pass
	Regalloc regalloc.Config
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Entry:    "main",
		Validate: false,
		Peephole: true,
		Regalloc: regalloc.DefaultConfig(),
	}
}

// fileConfig mirrors Config for TOML decoding; nil fields were absent.
type fileConfig struct {
	Entry    *string `toml:"entry"`
	Validate *bool   `toml:"validate"`
	Peephole *bool   `toml:"peephole"`
	Regalloc struct {
		Registers     []string `toml:"registers"`
		FlushInterval *int     `toml:"flush_interval"`
		MaxRounds     *int     `toml:"max_rounds"`
		Coalesce      *bool    `toml:"coalesce"`
	} `toml:"regalloc"`
}

// LoadConfig reads a TOML file and applies it over the defaults.
//
//	entry = "main"
//	validate = true
//	peephole = true
//
//	[regalloc]
//	registers = ["t0", "t1", "s0"]
//	flush_interval = 30
//	max_rounds = 64
//	coalesce = true
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "load config")
	}
	if err := cfg.Apply(data); err != nil {
		return cfg, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Apply overlays the keys present in a TOML document onto c.
func (c *Config) Apply(data []byte) error {
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return errors.Wrap(err, "parse toml")
	}
	if f.Entry != nil {
		c.Entry = *f.Entry
	}
	if f.Validate != nil {
		c.Validate = *f.Validate
	}
	if f.Peephole != nil {
		c.Peephole = *f.Peephole
	}
	if f.Regalloc.Registers != nil {
		regs, err := parseRegisters(f.Regalloc.Registers)
		if err != nil {
			return err
		}
		c.Regalloc.Registers = regs
	}
	if f.Regalloc.FlushInterval != nil {
		c.Regalloc.FlushInterval = *f.Regalloc.FlushInterval
	}
	if f.Regalloc.MaxRounds != nil {
		c.Regalloc.MaxRounds = *f.Regalloc.MaxRounds
	}
	if f.Regalloc.Coalesce != nil {
		c.Regalloc.Coalesce = *f.Regalloc.Coalesce
	}
	return nil
}

// parseRegisters resolves register names, rejecting registers the ABI
// reserves for arguments, results, the stack or the assembler.
func parseRegisters(names []string) ([]mips.Reg, error) {
	if len(names) == 0 {
		return nil, errors.New("regalloc.registers is empty")
	}
	allowed := make(map[mips.Reg]bool, len(mips.Allocatable))
	for _, r := range mips.Allocatable {
		allowed[r] = true
	}
	seen := make(map[mips.Reg]bool, len(names))
	regs := make([]mips.Reg, 0, len(names))
	for _, name := range names {
		r, err := mips.ParseReg(name)
		if err != nil {
			return nil, err
		}
		if !allowed[r] {
			return nil, errors.Errorf("register %s is not allocatable", r)
		}
		if seen[r] {
			return nil, errors.Errorf("register %s listed twice", r)
		}
		seen[r] = true
		regs = append(regs, r)
	}
	return regs, nil
}
