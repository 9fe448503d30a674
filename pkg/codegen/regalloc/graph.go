// Package regalloc - Graph coloring register allocation
// Design: iterated register coalescing (George & Appel) over an arena-indexed
// interference graph, with spill rewriting until a round needs no stack.
package regalloc

import (
	"math"
	"sort"

	"github.com/GriffinCanCode/mipsc/pkg/codegen/mips"
)

// infiniteDegree is the degree of precolored nodes; they never simplify.
const infiniteDegree = math.MaxInt32

type moveState int

const (
	moveWorklist moveState = iota
	moveActive
	moveCoalesced
	moveConstrained
	moveFrozen
)

// move is a register-to-register copy that may be coalesced.
type move struct {
	ins      *mips.Instr
	dst, src int
	state    moveState
}

type edge struct{ u, v int }

// Graph is the interference graph of one allocation round. Nodes are
// operands needing coloring, addressed by dense index.
type Graph struct {
	nodes []mips.Operand
	index map[mips.Operand]int

	adjSet   map[edge]struct{}
	adjList  [][]int // only for non-precolored nodes
	degree   []int
	moveList [][]int // indices into moves
	moves    []*move
	depth    []int // deepest loop nesting of any reference
}

func newGraph() *Graph {
	return &Graph{
		index:  make(map[mips.Operand]int),
		adjSet: make(map[edge]struct{}),
	}
}

// node returns the index of o, adding it on first sight.
func (g *Graph) node(o mips.Operand) int {
	if n, ok := g.index[o]; ok {
		return n
	}
	n := len(g.nodes)
	g.nodes = append(g.nodes, o)
	g.index[o] = n
	g.adjList = append(g.adjList, nil)
	g.moveList = append(g.moveList, nil)
	g.depth = append(g.depth, 0)
	if mips.IsPrecolored(o) {
		g.degree = append(g.degree, infiniteDegree)
	} else {
		g.degree = append(g.degree, 0)
	}
	return n
}

func (g *Graph) precolored(n int) bool { return mips.IsPrecolored(g.nodes[n]) }

func (g *Graph) adjacent(u, v int) bool {
	_, ok := g.adjSet[edge{u, v}]
	return ok
}

// addEdge records interference between u and v.
func (g *Graph) addEdge(u, v int) {
	if u == v || g.adjacent(u, v) {
		return
	}
	g.adjSet[edge{u, v}] = struct{}{}
	g.adjSet[edge{v, u}] = struct{}{}
	if !g.precolored(u) {
		g.adjList[u] = append(g.adjList[u], v)
		g.degree[u]++
	}
	if !g.precolored(v) {
		g.adjList[v] = append(g.adjList[v], u)
		g.degree[v]++
	}
}

func (g *Graph) addMove(ins *mips.Instr, dst, src int) {
	id := len(g.moves)
	g.moves = append(g.moves, &move{ins: ins, dst: dst, src: src})
	g.moveList[dst] = append(g.moveList[dst], id)
	if src != dst {
		g.moveList[src] = append(g.moveList[src], id)
	}
}

func (g *Graph) noteDepth(n, depth int) {
	if depth > g.depth[n] {
		g.depth[n] = depth
	}
}

// NumNodes returns the number of graph nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumMoves returns the number of coalescing candidates.
func (g *Graph) NumMoves() int { return len(g.moves) }

// Interferes reports whether a and b may not share a register.
func (g *Graph) Interferes(a, b mips.Operand) bool {
	u, okA := g.index[a]
	v, okB := g.index[b]
	return okA && okB && g.adjacent(u, v)
}

// Degree returns the number of neighbors of o, or -1 if o is not a node.
func (g *Graph) Degree(o mips.Operand) int {
	n, ok := g.index[o]
	if !ok {
		return -1
	}
	return g.degree[n]
}

// ids converts a live set to sorted node indices.
func (g *Graph) ids(live OperandSet) []int {
	ids := make([]int, 0, live.Cardinality())
	live.Each(func(o mips.Operand) bool {
		ids = append(ids, g.node(o))
		return false
	})
	sort.Ints(ids)
	return ids
}

func colorable(ops []mips.Operand) []mips.Operand {
	out := make([]mips.Operand, 0, len(ops))
	for _, o := range ops {
		if o.NeedsColoring() {
			out = append(out, o)
		}
	}
	return out
}

// BuildGraph builds the interference graph by walking every block backwards
// from its live-out set.
func BuildGraph(fn *mips.Function, live Liveness) *Graph {
	g := newGraph()

	// Number nodes in program order so later iteration is deterministic.
	for _, b := range fn.Blocks {
		for _, ins := range b.Instrs {
			for _, d := range colorable(ins.Defs()) {
				g.node(d)
			}
			for _, u := range colorable(ins.Uses()) {
				g.node(u)
			}
		}
	}

	for _, b := range fn.Blocks {
		cur := live[b].Out.Clone()
		for i := len(b.Instrs) - 1; i >= 0; i-- {
			ins := b.Instrs[i]
			defs := colorable(ins.Defs())
			uses := colorable(ins.Uses())

			if ins.IsRegMove() {
				cur.Remove(ins.Src[0])
				g.addMove(ins, g.node(ins.Dst), g.node(ins.Src[0]))
			}

			for _, d := range defs {
				cur.Add(d)
			}
			liveIDs := g.ids(cur)
			for _, d := range defs {
				dn := g.node(d)
				for _, l := range liveIDs {
					g.addEdge(l, dn)
				}
			}

			for _, o := range defs {
				g.noteDepth(g.node(o), b.LoopDepth)
			}
			for _, o := range uses {
				g.noteDepth(g.node(o), b.LoopDepth)
			}

			for _, d := range defs {
				cur.Remove(d)
			}
			for _, u := range uses {
				cur.Add(u)
			}
		}
	}
	return g
}
