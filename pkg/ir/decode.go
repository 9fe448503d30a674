package ir

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Module files are JSON documents:
//
//	{
//	  "runtime": true,
//	  "globals": [{"name": "a", "type": "[3 x i32]", "init": [1, 2, 3]}],
//	  "functions": [{
//	    "name": "main", "ret": "i32", "params": [],
//	    "blocks": [{"name": "entry", "loopDepth": 0, "instrs": [
//	      {"id": "%x", "op": "load", "args": ["@a"]},
//	      {"op": "ret", "args": ["%x"]}
//	    ]}]
//	  }]
//	}
//
// Operands are "%local", "%argN", "@global" or integer literals. A value must
// be defined earlier in the document than any of its uses.

type moduleJSON struct {
	Runtime   bool           `json:"runtime"`
	Globals   []globalJSON   `json:"globals"`
	Functions []functionJSON `json:"functions"`
}

type globalJSON struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	String *string         `json:"string"`
	Init   json.RawMessage `json:"init"`
}

type functionJSON struct {
	Name    string      `json:"name"`
	Ret     string      `json:"ret"`
	Params  []string    `json:"params"`
	Library bool        `json:"library"`
	Blocks  []blockJSON `json:"blocks"`
}

type blockJSON struct {
	Name      string      `json:"name"`
	LoopDepth int         `json:"loopDepth"`
	Instrs    []instrJSON `json:"instrs"`
}

type instrJSON struct {
	ID      string   `json:"id"`
	Op      string   `json:"op"`
	Type    string   `json:"type"`
	Cond    string   `json:"cond"`
	Callee  string   `json:"callee"`
	Args    []string `json:"args"`
	Targets []string `json:"targets"`
}

// Decode reads a JSON module.
func Decode(r io.Reader) (*Module, error) {
	var doc moduleJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode ir")
	}

	m := NewModule()
	if doc.Runtime {
		DeclareRuntime(m)
	}
	for _, g := range doc.Globals {
		init, err := decodeGlobal(g)
		if err != nil {
			return nil, errors.Wrapf(err, "global %s", g.Name)
		}
		m.NewGlobal(g.Name, init)
	}

	// Declare every function first so calls may refer forward.
	fns := make([]*Function, len(doc.Functions))
	for i, f := range doc.Functions {
		if f.Ret == "" {
			f.Ret = "void"
		}
		ret, err := ParseType(f.Ret)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", f.Name)
		}
		params := make([]Type, len(f.Params))
		for j, p := range f.Params {
			if params[j], err = ParseType(p); err != nil {
				return nil, errors.Wrapf(err, "function %s param %d", f.Name, j)
			}
		}
		if f.Library {
			fns[i] = m.DeclareLibrary(f.Name, ret, params...)
		} else {
			fns[i] = m.NewFunction(f.Name, ret, params...)
		}
	}
	for i, f := range doc.Functions {
		if err := decodeBody(m, fns[i], f); err != nil {
			return nil, errors.Wrapf(err, "function %s", f.Name)
		}
	}
	return m, nil
}

func decodeGlobal(g globalJSON) (Constant, error) {
	if g.String != nil {
		return &ConstString{Text: *g.String}, nil
	}
	t, err := ParseType(g.Type)
	if err != nil {
		return nil, err
	}
	if len(g.Init) == 0 {
		return &ZeroInitializer{Typ: t}, nil
	}
	var raw interface{}
	if err := json.Unmarshal(g.Init, &raw); err != nil {
		return nil, errors.Wrap(err, "initializer")
	}
	return decodeConst(t, raw)
}

func decodeConst(t Type, raw interface{}) (Constant, error) {
	switch t := t.(type) {
	case IntType:
		n, ok := raw.(float64)
		if !ok {
			return nil, errors.Errorf("want number for %s, got %v", t, raw)
		}
		return &ConstInt{Typ: t, Val: int32(n)}, nil
	case ArrayType:
		elems, ok := raw.([]interface{})
		if !ok {
			return nil, errors.Errorf("want list for %s, got %v", t, raw)
		}
		if len(elems) > t.Len {
			return nil, errors.Errorf("%d initializers for %s", len(elems), t)
		}
		arr := &ConstArray{Typ: t}
		for _, e := range elems {
			c, err := decodeConst(t.Elem, e)
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, c)
		}
		for len(arr.Elems) < t.Len {
			arr.Elems = append(arr.Elems, &ZeroInitializer{Typ: t.Elem})
		}
		return arr, nil
	default:
		return nil, errors.Errorf("cannot initialize %s", t)
	}
}

type bodyDecoder struct {
	m      *Module
	fn     *Function
	blocks map[string]*Block
	values map[string]Value
}

func decodeBody(m *Module, fn *Function, f functionJSON) error {
	if fn.Library {
		if len(f.Blocks) > 0 {
			return errors.New("library function has a body")
		}
		return nil
	}
	d := &bodyDecoder{
		m:      m,
		fn:     fn,
		blocks: make(map[string]*Block),
		values: make(map[string]Value),
	}
	for _, p := range fn.Params {
		d.values[p.Name()] = p
	}
	for _, b := range f.Blocks {
		if _, dup := d.blocks[b.Name]; dup {
			return errors.Errorf("duplicate block %s", b.Name)
		}
		blk := fn.NewBlock(b.Name)
		blk.LoopDepth = b.LoopDepth
		d.blocks[b.Name] = blk
	}
	for i, b := range f.Blocks {
		bld := NewBuilder(fn.Blocks[i])
		for j, in := range b.Instrs {
			v, err := d.instr(bld, in)
			if err != nil {
				return errors.Wrapf(err, "block %s instr %d (%s)", b.Name, j, in.Op)
			}
			if in.ID != "" {
				if v == nil {
					return errors.Errorf("block %s instr %d: %s produces no value", b.Name, j, in.Op)
				}
				d.values[in.ID] = v
			}
		}
	}
	return nil
}

func (d *bodyDecoder) args(in instrJSON, n int) ([]Value, error) {
	if n >= 0 && len(in.Args) != n {
		return nil, errors.Errorf("want %d operands, got %d", n, len(in.Args))
	}
	vals := make([]Value, len(in.Args))
	for i, a := range in.Args {
		v, err := d.operand(a)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (d *bodyDecoder) operand(s string) (Value, error) {
	switch {
	case strings.HasPrefix(s, "%"):
		if v, ok := d.values[s]; ok {
			return v, nil
		}
		return nil, errors.Errorf("undefined value %s", s)
	case strings.HasPrefix(s, "@"):
		if g := d.m.Global(s[1:]); g != nil {
			return g, nil
		}
		return nil, errors.Errorf("undefined global %s", s)
	default:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, errors.Errorf("bad operand %q", s)
		}
		return Const(int32(n)), nil
	}
}

func (d *bodyDecoder) block(name string) (*Block, error) {
	if b, ok := d.blocks[name]; ok {
		return b, nil
	}
	return nil, errors.Errorf("undefined block %s", name)
}

var (
	binOps = map[string]BinOp{"add": OpAdd, "sub": OpSub, "mul": OpMul, "sdiv": OpSDiv, "srem": OpSRem}
	conds  = map[string]Cond{"eq": CondEq, "ne": CondNe, "slt": CondSlt, "sle": CondSle, "sgt": CondSgt, "sge": CondSge}
)

func (d *bodyDecoder) instr(b *Builder, in instrJSON) (Value, error) {
	if op, ok := binOps[in.Op]; ok {
		a, err := d.args(in, 2)
		if err != nil {
			return nil, err
		}
		return b.Binary(op, a[0], a[1]), nil
	}

	switch in.Op {
	case "icmp":
		c, ok := conds[in.Cond]
		if !ok {
			return nil, errors.Errorf("unknown condition %q", in.Cond)
		}
		a, err := d.args(in, 2)
		if err != nil {
			return nil, err
		}
		return b.ICmp(c, a[0], a[1]), nil
	case "zext", "trunc":
		t, err := ParseType(in.Type)
		if err != nil {
			return nil, err
		}
		it, ok := t.(IntType)
		if !ok {
			return nil, errors.Errorf("%s to non-integer %s", in.Op, t)
		}
		a, err := d.args(in, 1)
		if err != nil {
			return nil, err
		}
		if in.Op == "zext" {
			return b.Zext(a[0], it), nil
		}
		return b.Trunc(a[0], it), nil
	case "alloca":
		t, err := ParseType(in.Type)
		if err != nil {
			return nil, err
		}
		return b.Alloca(t), nil
	case "load":
		a, err := d.args(in, 1)
		if err != nil {
			return nil, err
		}
		if Elem(a[0].Type()) == nil {
			return nil, errors.Errorf("load through non-pointer %s", a[0].Name())
		}
		return b.Load(a[0]), nil
	case "store":
		a, err := d.args(in, 2)
		if err != nil {
			return nil, err
		}
		b.Store(a[0], a[1])
		return nil, nil
	case "gep":
		a, err := d.args(in, -1)
		if err != nil {
			return nil, err
		}
		if len(a) != 2 && len(a) != 3 {
			return nil, errors.Errorf("gep takes one or two indices, got %d", len(a)-1)
		}
		return b.GEP(a[0], a[1:]...), nil
	case "call":
		callee := d.m.Function(in.Callee)
		if callee == nil {
			return nil, errors.Errorf("undefined function %s", in.Callee)
		}
		a, err := d.args(in, len(callee.Params))
		if err != nil {
			return nil, err
		}
		call := b.Call(callee, a...)
		if _, void := callee.Ret.(VoidType); void {
			return nil, nil
		}
		return call, nil
	case "br":
		switch len(in.Targets) {
		case 1:
			t, err := d.block(in.Targets[0])
			if err != nil {
				return nil, err
			}
			b.Br(t)
		case 2:
			a, err := d.args(in, 1)
			if err != nil {
				return nil, err
			}
			t, err := d.block(in.Targets[0])
			if err != nil {
				return nil, err
			}
			f, err := d.block(in.Targets[1])
			if err != nil {
				return nil, err
			}
			b.CondBr(a[0], t, f)
		default:
			return nil, errors.Errorf("br takes one or two targets, got %d", len(in.Targets))
		}
		return nil, nil
	case "ret":
		a, err := d.args(in, -1)
		if err != nil {
			return nil, err
		}
		var v Value
		if len(a) > 0 {
			v = a[0]
		}
		b.Ret(v)
		return nil, nil
	}
	return nil, errors.Errorf("unknown opcode %q", in.Op)
}

// ParseType parses i1, i8, i32, void, T* and [N x T].
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "void":
		return Void, nil
	case strings.HasSuffix(s, "*"):
		elem, err := ParseType(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return PtrTo(elem), nil
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		n, elem, ok := strings.Cut(s[1:len(s)-1], " x ")
		if !ok {
			return nil, errors.Errorf("bad array type %q", s)
		}
		length, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || length < 0 {
			return nil, errors.Errorf("bad array length in %q", s)
		}
		et, err := ParseType(elem)
		if err != nil {
			return nil, err
		}
		return ArrayOf(et, length), nil
	case strings.HasPrefix(s, "i"):
		bits, err := strconv.Atoi(s[1:])
		if err != nil || (bits != 1 && bits != 8 && bits != 32) {
			return nil, errors.Errorf("bad integer type %q", s)
		}
		return IntType{Bits: bits}, nil
	}
	return nil, errors.Errorf("unknown type %q", s)
}
