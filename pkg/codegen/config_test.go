package codegen

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mipsc.toml")
	data := `
entry = "start"
validate = true

[regalloc]
registers = ["t0", "$t1", "s0"]
max_rounds = 8
`
	assert.NilError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	assert.NilError(t, err)

	want := DefaultConfig()
	want.Entry = "start"
	want.Validate = true
	want.Regalloc.Registers = []mips.Reg{mips.T0, mips.T1, mips.S0}
	want.Regalloc.MaxRounds = 8
	assert.DeepEqual(t, cfg, want)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorContains(t, err, "load config")
}

func TestApplyConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "syntax", data: "entry = ", want: "parse toml"},
		{name: "unknown register", data: "[regalloc]\nregisters = [\"t10\"]", want: `unknown register "t10"`},
		{name: "reserved register", data: "[regalloc]\nregisters = [\"a0\"]", want: "register $a0 is not allocatable"},
		{name: "duplicate", data: "[regalloc]\nregisters = [\"t0\", \"t0\"]", want: "register $t0 listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			assert.ErrorContains(t, cfg.Apply([]byte(tt.data)), tt.want)
		})
	}
}

func TestApplyKeepsAbsentKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peephole = false
	assert.NilError(t, cfg.Apply([]byte("[regalloc]\ncoalesce = false\n")))
	assert.Equal(t, cfg.Peephole, false)
	assert.Equal(t, cfg.Regalloc.Coalesce, false)
	assert.Equal(t, cfg.Regalloc.FlushInterval, DefaultConfig().Regalloc.FlushInterval)
}
