package codegen

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
)

// run executes the straight-line entry function of a compiled program and
// returns the integers it prints.
func run(t *testing.T, asm string) []int32 {
	t.Helper()
	regs := map[string]int32{"$sp": 0x7fffeffc}
	mem := make(map[int32]int32)
	var out []int32

	get := func(r string) int32 { return regs[r] }
	set := func(r string, v int32) {
		if r != "$zero" {
			regs[r] = v
		}
	}
	value := func(s string) int32 {
		if strings.HasPrefix(s, "$") {
			return get(s)
		}
		n, err := strconv.ParseInt(s, 10, 32)
		assert.NilError(t, err)
		return int32(n)
	}
	addr := func(s string) int32 {
		off, base, ok := strings.Cut(strings.TrimSuffix(s, ")"), "(")
		assert.Assert(t, ok, "bad address %q", s)
		return value(off) + get(base)
	}

	_, text, ok := strings.Cut(asm, ".text\n")
	assert.Assert(t, ok)
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, "\t") {
			continue
		}
		op, rest, _ := strings.Cut(strings.TrimSpace(line), "\t")
		args := strings.Split(rest, ", ")
		switch op {
		case "li", "move":
			set(args[0], value(args[1]))
		case "addu", "addiu":
			set(args[0], get(args[1])+value(args[2]))
		case "subu":
			set(args[0], get(args[1])-value(args[2]))
		case "mul":
			set(args[0], get(args[1])*value(args[2]))
		case "lw":
			a := addr(args[1])
			v, ok := mem[a]
			assert.Assert(t, ok, "load from unwritten address %d: %s", a, line)
			set(args[0], v)
		case "sw":
			mem[addr(args[1])] = get(args[0])
		case "syscall":
			switch get("$v0") {
			case 1:
				out = append(out, get("$a0"))
			case 10:
				return out
			default:
				t.Fatalf("unexpected system call %d", get("$v0"))
			}
		default:
			t.Fatalf("cannot run %q", line)
		}
	}
	t.Fatal("program did not exit")
	return nil
}

func compile(t *testing.T, mod *ir.Module, cfg Config) string {
	t.Helper()
	var buf bytes.Buffer
	assert.NilError(t, Compile(mod, cfg, &buf))
	return buf.String()
}

// wideSum builds a main that fills an n-element array with 1..n, loads every
// element before adding any of them, and prints the total.
func wideSum(n int) *ir.Module {
	m := ir.NewModule()
	ir.DeclareRuntime(m)
	fn := m.NewFunction("main", ir.I32)
	b := ir.NewBuilder(fn.NewBlock("entry"))
	arr := b.Alloca(ir.ArrayOf(ir.I32, n))
	for i := 0; i < n; i++ {
		b.Store(ir.Const(int32(i+1)), b.GEP(arr, ir.Const(0), ir.Const(int32(i))))
	}
	vals := make([]ir.Value, n)
	for i := range vals {
		vals[i] = b.Load(b.GEP(arr, ir.Const(0), ir.Const(int32(i))))
	}
	acc := vals[0]
	for _, v := range vals[1:] {
		acc = b.Add(acc, v)
	}
	b.Call(m.Function("putint"), acc)
	b.Ret(ir.Const(0))
	return m
}

func TestCompileModule(t *testing.T) {
	f, err := os.Open("../ir/testdata/sum.json")
	assert.NilError(t, err)
	defer f.Close()
	mod, err := ir.Decode(f)
	assert.NilError(t, err)

	cfg := DefaultConfig()
	cfg.Validate = true
	asm := compile(t, mod, cfg)

	assert.Check(t, is.Contains(asm, "msg:\t.asciiz\t\"sum:\\n\"\n"))
	assert.Check(t, is.Contains(asm, "table:\t.word\t1, 2, 3, 0\n"))
	assert.Check(t, is.Contains(asm, "count:\t.space\t4\n"))
	assert.Check(t, is.Contains(asm, "\tjal\tsum\n"))
	assert.Check(t, is.Contains(asm, "\tjr\t$ra\n"))
	assert.Check(t, !strings.Contains(asm, "vr"), "virtual registers left in output")

	order := []string{".data\n", ".text\n", "main:\n", "sum:\n"}
	last := -1
	for _, s := range order {
		idx := strings.Index(asm, s)
		assert.Assert(t, idx > last, "%q out of order", s)
		last = idx
	}
}

func TestArrayInitializer(t *testing.T) {
	m := ir.NewModule()
	ir.DeclareRuntime(m)
	fn := m.NewFunction("main", ir.Void)
	b := ir.NewBuilder(fn.NewBlock("entry"))
	arr := b.Alloca(ir.ArrayOf(ir.I32, 3))
	for i := int32(0); i < 3; i++ {
		b.Store(ir.Const(i+1), b.GEP(arr, ir.Const(0), ir.Const(i)))
	}
	for i := int32(0); i < 3; i++ {
		b.Call(m.Function("putint"), b.Load(b.GEP(arr, ir.Const(0), ir.Const(i))))
	}
	b.Ret(nil)

	cfg := DefaultConfig()
	cfg.Validate = true
	assert.DeepEqual(t, run(t, compile(t, m, cfg)), []int32{1, 2, 3})
}

func TestRegisterPressure(t *testing.T) {
	out, err := Lower(wideSum(24), DefaultConfig())
	assert.NilError(t, err)
	mf := out.Function("main")
	assert.Assert(t, mf.AllocaSize > 24*4, "expected spill slots past the array, got %d bytes", mf.AllocaSize)
	assert.Equal(t, mf.FrameSize, mf.AllocaSize)

	cfg := DefaultConfig()
	cfg.Validate = true
	assert.DeepEqual(t, run(t, compile(t, wideSum(24), cfg)), []int32{300})
}

func TestFewRegisters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Validate = true
	cfg.Regalloc.Registers = []mips.Reg{mips.T0, mips.T1, mips.T2, mips.T3}
	cfg.Regalloc.FlushInterval = 5

	asm := compile(t, wideSum(12), cfg)
	for _, r := range []string{"$t4", "$s0"} {
		assert.Check(t, !strings.Contains(asm, r), "%s is not in the register set", r)
	}
	assert.DeepEqual(t, run(t, asm), []int32{78})
}

func TestPeepholeDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peephole = false
	assert.DeepEqual(t, run(t, compile(t, wideSum(4), cfg)), []int32{10})
}

func TestEntryRequired(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  string
	}{
		{name: "missing", entry: "start", want: "entry function start is not defined"},
		{name: "library", entry: "putint", want: "entry function putint is not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Entry = tt.entry
			err := Compile(wideSum(2), cfg, &bytes.Buffer{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCompileErrorNamesFunction(t *testing.T) {
	m := ir.NewModule()
	exit := m.DeclareLibrary("exit", ir.Void, ir.I32)
	fn := m.NewFunction("main", ir.Void)
	b := ir.NewBuilder(fn.NewBlock("entry"))
	b.Call(exit, ir.Const(0))
	b.Ret(nil)

	var buf bytes.Buffer
	err := Compile(m, DefaultConfig(), &buf)
	assert.ErrorContains(t, err, "isel: main: entry: unknown library function exit")
	assert.Equal(t, buf.Len(), 0)
}
