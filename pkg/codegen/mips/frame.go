package mips

import (
	"fmt"
	"sort"
	"strings"
)

// FinalizeFrame fixes the frame layout once allocation is complete.
//
// Layout, from the incoming stack pointer downwards:
//
//	-4 .. -4*len(Saved)      registers saved by the prologue
//	AllocaSize-1 .. 0        locals and spill slots (new $sp at 0)
//
// Incoming arguments past the fourth live in the caller's frame, so every
// recorded argument offset is shifted by the final frame size.
func (f *Function) FinalizeFrame() {
	if f.finalized {
		return
	}
	f.finalized = true

	seen := make(map[Reg]bool)
	if !f.Entry {
		for _, b := range f.Blocks {
			for _, ins := range b.Instrs {
				for _, d := range ins.Defs() {
					if p, ok := d.(PReg); ok && MustPreserve(p.Reg) {
						seen[p.Reg] = true
					}
				}
			}
		}
	}
	f.Saved = f.Saved[:0]
	for r := range seen {
		f.Saved = append(f.Saved, r)
	}
	sort.Slice(f.Saved, func(i, j int) bool { return f.Saved[i] < f.Saved[j] })

	f.FrameSize = 4*len(f.Saved) + f.AllocaSize
	for _, s := range f.argSlots {
		off := s.ins.Src[s.src].(Imm)
		s.ins.SetSrc(s.src, Imm{Value: off.Value + int32(f.FrameSize)})
	}
}

// SavedNames lists the saved registers for diagnostics.
func (f *Function) SavedNames() []string {
	names := make([]string, len(f.Saved))
	for i, r := range f.Saved {
		names[i] = r.String()
	}
	return names
}

func (f *Function) prologue() string {
	var sb strings.Builder
	if !f.Entry {
		for i, r := range f.Saved {
			fmt.Fprintf(&sb, "\tsw\t%s, %d($sp)\n", r, -4*(i+1))
		}
	}
	if f.FrameSize > 0 {
		fmt.Fprintf(&sb, "\taddiu\t$sp, $sp, %d\n", -f.FrameSize)
	}
	return sb.String()
}

// epilogue is the text of a return instruction, without the leading tab.
func (f *Function) epilogue() string {
	var lines []string
	if f.FrameSize > 0 {
		lines = append(lines, fmt.Sprintf("addiu\t$sp, $sp, %d", f.FrameSize))
	}
	if f.Entry {
		return strings.Join(append(lines, "li\t$v0, 10", "syscall"), "\n\t")
	}
	for i, r := range f.Saved {
		lines = append(lines, fmt.Sprintf("lw\t%s, %d($sp)", r, -4*(i+1)))
	}
	return strings.Join(append(lines, "jr\t$ra"), "\n\t")
}
