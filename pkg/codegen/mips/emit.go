package mips

import (
	"fmt"
	"io"
	"strings"
)

// WriteTo writes the program as MARS assembly: the data section, then the
// entry function, then every other function in order.
func (m *Module) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.String())
	return int64(n), err
}

func (m *Module) String() string {
	var sb strings.Builder

	sb.WriteString(".data\n")
	for _, g := range m.Globals {
		sb.WriteString(g.String())
		sb.WriteByte('\n')
	}

	sb.WriteString("\n.text\n")
	for _, f := range m.Functions {
		if f.Entry {
			sb.WriteString(f.String())
		}
	}
	for _, f := range m.Functions {
		if !f.Entry {
			sb.WriteString(f.String())
		}
	}
	return sb.String()
}

func (g *Global) String() string {
	switch g.Kind {
	case DataAsciiz:
		return fmt.Sprintf("%s:\t.asciiz\t\"%s\"", g.Name, escapeString(g.Text))
	case DataWord:
		words := make([]string, len(g.Words))
		for i, w := range g.Words {
			words[i] = fmt.Sprint(w)
		}
		return fmt.Sprintf("%s:\t.word\t%s", g.Name, strings.Join(words, ", "))
	default:
		return fmt.Sprintf("%s:\t.space\t%d", g.Name, g.Size)
	}
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

func escapeString(s string) string { return stringEscaper.Replace(s) }

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", f.Name)
	sb.WriteString(f.prologue())
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Label)
		for _, ins := range b.Instrs {
			fmt.Fprintf(&sb, "\t%s\n", ins)
		}
	}
	return sb.String()
}
