package mips

// Layout orders the blocks for emission by a depth-first walk from the entry
// block, turning jumps into fall-throughs where possible.
//
// A block with one successor that is not yet placed drops its trailing jump
// and is followed by that successor. A conditional block is followed by its
// fall-through successor; if that one is already placed an explicit jump is
// appended instead. Blocks unreachable from the entry are dropped.
func (f *Function) Layout() {
	if len(f.Blocks) == 0 {
		return
	}
	placed := make(map[*Block]bool, len(f.Blocks))
	order := make([]*Block, 0, len(f.Blocks))

	var visit func(b *Block)
	visit = func(b *Block) {
		placed[b] = true
		order = append(order, b)
		switch len(b.Succs) {
		case 1:
			next := b.Succs[0]
			if placed[next] {
				return
			}
			if last := b.Last(); last != nil && last.Op == OpJump && last.Target == next {
				b.Instrs = b.Instrs[:len(b.Instrs)-1]
			}
			visit(next)
		case 2:
			taken, fall := b.Succs[0], b.Succs[1]
			if placed[fall] {
				b.Append(NewJump(fall))
			} else {
				visit(fall)
			}
			if !placed[taken] {
				visit(taken)
			}
		}
	}
	visit(f.Blocks[0])
	f.Blocks = order
}
