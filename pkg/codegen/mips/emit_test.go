package mips

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestModuleString(t *testing.T) {
	helper := NewFunction("f", false)
	hb := helper.NewBlock("f_b0", 0)
	hb.Append(NewRet(helper))

	entry := NewFunction("main", true)
	mb := entry.NewBlock("main_b0", 0)
	mb.Append(NewCall("f"), NewRet(entry))

	m := &Module{
		Globals: []*Global{
			{Name: "msg", Kind: DataAsciiz, Text: "a\"b\n"},
			{Name: "arr", Kind: DataWord, Words: []int32{1, 2, -3}},
			{Name: "buf", Kind: DataSpace, Size: 40},
		},
		Functions: []*Function{helper, entry},
	}

	want := strings.Join([]string{
		".data",
		"msg:\t.asciiz\t\"a\\\"b\\n\"",
		"arr:\t.word\t1, 2, -3",
		"buf:\t.space\t40",
		"",
		".text",
		"main:",
		"main_b0:",
		"\tjal\tf",
		"\tli\t$v0, 10",
		"\tsyscall",
		"f:",
		"f_b0:",
		"\tjr\t$ra",
		"",
	}, "\n")
	assert.Equal(t, m.String(), want)

	var sb strings.Builder
	n, err := m.WriteTo(&sb)
	assert.NilError(t, err)
	assert.Equal(t, int(n), len(want))
	assert.Equal(t, m.Function("f"), helper)
	assert.Assert(t, m.Function("g") == nil)
}
