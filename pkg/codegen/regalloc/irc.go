package regalloc

import (
	"math"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
)

// spillWeightBase discounts nodes referenced inside loops when picking a
// spill candidate.
const spillWeightBase = 1.414

// worklist is an insertion-ordered node set with O(1) membership updates.
// Removed entries stay in order until popped and are skipped then.
type worklist struct {
	order  []int
	member []bool
	size   int
}

func newWorklist(n int) *worklist {
	return &worklist{member: make([]bool, n)}
}

func (w *worklist) add(n int) {
	if !w.member[n] {
		w.member[n] = true
		w.order = append(w.order, n)
		w.size++
	}
}

func (w *worklist) remove(n int) {
	if w.member[n] {
		w.member[n] = false
		w.size--
	}
}

func (w *worklist) has(n int) bool { return w.member[n] }
func (w *worklist) empty() bool    { return w.size == 0 }

func (w *worklist) pop() int {
	for {
		n := w.order[0]
		w.order = w.order[1:]
		if w.member[n] {
			w.remove(n)
			return n
		}
	}
}

// each visits members in insertion order.
func (w *worklist) each(fn func(n int)) {
	seen := make(map[int]bool, w.size)
	for _, n := range w.order {
		if w.member[n] && !seen[n] {
			seen[n] = true
			fn(n)
		}
	}
}

// coloring is the outcome of one allocation round.
type coloring struct {
	colors    map[int]mips.Reg // node -> register, for non-precolored nodes
	spilled   []int
	coalesced int
	potential int // spill candidates picked; some may still get a color
}

// allocator runs the simplify/coalesce/freeze/spill loop on one graph.
type allocator struct {
	g        *Graph
	regs     []mips.Reg
	k        int
	noSpill  map[mips.Operand]bool
	coalesce bool

	simplifyWL, freezeWL, spillWL *worklist
	worklistMoves                 []int

	selectStack    []int
	onStack        []bool
	coalesced      []bool
	coalescedNodes []int
	alias          []int

	color     []mips.Reg
	colored   []bool
	spilled   []int
	merged    int
	potential int
}

func newAllocator(g *Graph, regs []mips.Reg, coalesce bool, noSpill map[mips.Operand]bool) *allocator {
	n := g.NumNodes()
	a := &allocator{
		g:          g,
		regs:       regs,
		k:          len(regs),
		noSpill:    noSpill,
		coalesce:   coalesce,
		simplifyWL: newWorklist(n),
		freezeWL:   newWorklist(n),
		spillWL:    newWorklist(n),
		onStack:    make([]bool, n),
		coalesced:  make([]bool, n),
		alias:      make([]int, n),
		color:      make([]mips.Reg, n),
		colored:    make([]bool, n),
	}
	for i := range a.alias {
		a.alias[i] = i
	}
	return a
}

func (a *allocator) run() *coloring {
	a.makeWorklist()
	for {
		switch {
		case !a.simplifyWL.empty():
			a.simplify()
		case len(a.worklistMoves) > 0:
			a.coalesceMove()
		case !a.freezeWL.empty():
			a.freeze()
		case !a.spillWL.empty():
			a.selectSpill()
		default:
			return a.assignColors()
		}
	}
}

func (a *allocator) makeWorklist() {
	for id, m := range a.g.moves {
		if a.coalesce {
			m.state = moveWorklist
			a.worklistMoves = append(a.worklistMoves, id)
		} else {
			m.state = moveFrozen
		}
	}
	for n := range a.g.nodes {
		switch {
		case a.g.precolored(n):
		case a.g.degree[n] >= a.k:
			a.spillWL.add(n)
		case a.moveRelated(n):
			a.freezeWL.add(n)
		default:
			a.simplifyWL.add(n)
		}
	}
}

// adjacent lists the neighbors of n still in the graph.
func (a *allocator) adjacent(n int) []int {
	var adj []int
	for _, m := range a.g.adjList[n] {
		if !a.onStack[m] && !a.coalesced[m] {
			adj = append(adj, m)
		}
	}
	return adj
}

// nodeMoves lists the moves of n that may still be coalesced.
func (a *allocator) nodeMoves(n int) []int {
	var ms []int
	for _, id := range a.g.moveList[n] {
		if s := a.g.moves[id].state; s == moveActive || s == moveWorklist {
			ms = append(ms, id)
		}
	}
	return ms
}

func (a *allocator) moveRelated(n int) bool { return len(a.nodeMoves(n)) > 0 }

func (a *allocator) simplify() {
	n := a.simplifyWL.pop()
	a.selectStack = append(a.selectStack, n)
	a.onStack[n] = true
	for _, m := range a.adjacent(n) {
		a.decrementDegree(m)
	}
}

func (a *allocator) decrementDegree(m int) {
	if a.g.precolored(m) {
		return
	}
	d := a.g.degree[m]
	a.g.degree[m] = d - 1
	if d != a.k {
		return
	}
	a.enableMoves(append(a.adjacent(m), m))
	a.spillWL.remove(m)
	if a.moveRelated(m) {
		a.freezeWL.add(m)
	} else {
		a.simplifyWL.add(m)
	}
}

func (a *allocator) enableMoves(nodes []int) {
	for _, n := range nodes {
		for _, id := range a.nodeMoves(n) {
			if m := a.g.moves[id]; m.state == moveActive {
				m.state = moveWorklist
				a.worklistMoves = append(a.worklistMoves, id)
			}
		}
	}
}

func (a *allocator) coalesceMove() {
	id := a.worklistMoves[0]
	a.worklistMoves = a.worklistMoves[1:]
	m := a.g.moves[id]
	if m.state != moveWorklist {
		return
	}

	x, y := a.getAlias(m.dst), a.getAlias(m.src)
	u, v := x, y
	if a.g.precolored(y) {
		u, v = y, x
	}

	switch {
	case u == v:
		m.state = moveCoalesced
		a.addWorkList(u)
	case a.g.precolored(v) || a.g.adjacent(u, v):
		m.state = moveConstrained
		a.addWorkList(u)
		a.addWorkList(v)
	case a.canCoalesce(u, v):
		m.state = moveCoalesced
		a.combine(u, v)
		a.addWorkList(u)
	default:
		m.state = moveActive
	}
}

// canCoalesce applies George's test against a precolored u and Briggs' test
// otherwise.
func (a *allocator) canCoalesce(u, v int) bool {
	if a.g.precolored(u) {
		for _, t := range a.adjacent(v) {
			if !a.ok(t, u) {
				return false
			}
		}
		return true
	}
	return a.conservative(append(a.adjacent(u), a.adjacent(v)...))
}

func (a *allocator) addWorkList(u int) {
	if !a.g.precolored(u) && !a.moveRelated(u) && a.g.degree[u] < a.k {
		a.freezeWL.remove(u)
		a.simplifyWL.add(u)
	}
}

func (a *allocator) ok(t, r int) bool {
	return a.g.degree[t] < a.k || a.g.precolored(t) || a.g.adjacent(t, r)
}

// conservative reports whether merging leaves fewer than K significant
// neighbors.
func (a *allocator) conservative(nodes []int) bool {
	seen := make(map[int]bool, len(nodes))
	significant := 0
	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true
		if a.g.degree[n] >= a.k {
			significant++
		}
	}
	return significant < a.k
}

func (a *allocator) getAlias(n int) int {
	for a.coalesced[n] {
		n = a.alias[n]
	}
	return n
}

func (a *allocator) combine(u, v int) {
	if a.freezeWL.has(v) {
		a.freezeWL.remove(v)
	} else {
		a.spillWL.remove(v)
	}
	a.coalesced[v] = true
	a.coalescedNodes = append(a.coalescedNodes, v)
	a.alias[v] = u
	a.merged++
	a.g.moveList[u] = append(a.g.moveList[u], a.g.moveList[v]...)
	a.enableMoves([]int{v})
	for _, t := range a.adjacent(v) {
		a.g.addEdge(t, u)
		a.decrementDegree(t)
	}
	if !a.g.precolored(u) && a.g.degree[u] >= a.k && a.freezeWL.has(u) {
		a.freezeWL.remove(u)
		a.spillWL.add(u)
	}
}

func (a *allocator) freeze() {
	u := a.freezeWL.pop()
	a.simplifyWL.add(u)
	a.freezeMoves(u)
}

func (a *allocator) freezeMoves(u int) {
	for _, id := range a.nodeMoves(u) {
		m := a.g.moves[id]
		var v int
		if a.getAlias(m.src) == a.getAlias(u) {
			v = a.getAlias(m.dst)
		} else {
			v = a.getAlias(m.src)
		}
		m.state = moveFrozen
		if a.freezeWL.has(v) && !a.moveRelated(v) && a.g.degree[v] < a.k {
			a.freezeWL.remove(v)
			a.simplifyWL.add(v)
		}
	}
}

// selectSpill picks the node with the highest degree per unit of loop
// weight. Temporaries introduced by earlier spills are only chosen when
// nothing else is left.
func (a *allocator) selectSpill() {
	best, bestTemp := -1, -1
	bestCost, bestTempCost := -1.0, -1.0
	a.spillWL.each(func(n int) {
		cost := float64(a.g.degree[n]) / math.Pow(spillWeightBase, float64(a.g.depth[n]))
		if a.noSpill[a.g.nodes[n]] {
			if cost > bestTempCost {
				bestTemp, bestTempCost = n, cost
			}
			return
		}
		if cost > bestCost {
			best, bestCost = n, cost
		}
	})
	if best < 0 {
		best = bestTemp
	}
	a.potential++
	a.spillWL.remove(best)
	a.simplifyWL.add(best)
	a.freezeMoves(best)
}

func (a *allocator) assignColors() *coloring {
	used := make([]bool, mips.NumRegs)
	for len(a.selectStack) > 0 {
		n := a.selectStack[len(a.selectStack)-1]
		a.selectStack = a.selectStack[:len(a.selectStack)-1]
		a.onStack[n] = false

		for i := range used {
			used[i] = false
		}
		for _, w := range a.g.adjList[n] {
			switch r := a.getAlias(w); {
			case a.g.precolored(r):
				used[a.g.nodes[r].(mips.PReg).Reg] = true
			case a.colored[r]:
				used[a.color[r]] = true
			}
		}

		picked := false
		for _, reg := range a.regs {
			if !used[reg] {
				a.color[n], a.colored[n] = reg, true
				picked = true
				break
			}
		}
		if !picked {
			a.spilled = append(a.spilled, n)
		}
	}

	for _, n := range a.coalescedNodes {
		switch r := a.getAlias(n); {
		case a.g.precolored(r):
			a.color[n], a.colored[n] = a.g.nodes[r].(mips.PReg).Reg, true
		case a.colored[r]:
			a.color[n], a.colored[n] = a.color[r], true
		}
	}

	res := &coloring{
		colors:    make(map[int]mips.Reg),
		spilled:   a.spilled,
		coalesced: a.merged,
		potential: a.potential,
	}
	for n := range a.g.nodes {
		if a.colored[n] {
			res.colors[n] = a.color[n]
		}
	}
	return res
}
