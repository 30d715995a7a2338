package mcts

import (
	"math"
	"math/rand"

	"github.com/brensch/zeroclone/executor/policy"
	"github.com/brensch/zeroclone/game"
)

// Node is one position in the search tree. Nodes live in Tree.Nodes and
// refer to each other by index.
//
// Edge statistics are kept per legal move, in the backend's enumeration
// order, from the moment the node is created. Wa and Qa are from the point
// of view of the player to move at this node.
type Node struct {
	State  game.State
	Parent int // -1 for the root
	Edge   int // index into the parent's Moves; -1 for the root

	Moves    []game.Move
	Children []int // child index per move, -1 while unexpanded
	Untried  []int // move indices not yet expanded, in enumeration order

	Na []int
	Wa []float64
	Qa []float64 // +Inf while Na is zero

	N int
}

// Terminal reports whether the node has no legal moves.
func (n *Node) Terminal() bool { return len(n.Moves) == 0 }

func (n *Node) expanded() bool {
	return len(n.Moves) > len(n.Untried)
}

// Tree is built fresh for each move selection and thrown away afterwards.
type Tree struct {
	Nodes   []Node
	backend game.Backend
	scratch []game.Move
}

func NewTree(b game.Backend, root game.State, capacity int) *Tree {
	if capacity < 1 {
		capacity = 1
	}
	t := &Tree{backend: b, Nodes: make([]Node, 0, capacity)}
	t.addNode(root, -1, -1)
	return t
}

func (t *Tree) Root() *Node { return &t.Nodes[0] }

func (t *Tree) addNode(s game.State, parent, edge int) int {
	moves := t.backend.LegalMoves(s)
	k := len(moves)
	n := Node{
		State:    s,
		Parent:   parent,
		Edge:     edge,
		Moves:    moves,
		Children: make([]int, k),
		Untried:  make([]int, k),
		Na:       make([]int, k),
		Wa:       make([]float64, k),
		Qa:       make([]float64, k),
	}
	for i := 0; i < k; i++ {
		n.Children[i] = -1
		n.Untried[i] = i
		n.Qa[i] = math.Inf(1)
	}
	t.Nodes = append(t.Nodes, n)
	return len(t.Nodes) - 1
}

// UCT scores edge a of node idx. Unvisited edges score +Inf so every edge is
// tried once before any is ranked, and ln(N) is never taken with N == 0.
func (t *Tree) UCT(idx, a int, c float64) float64 {
	n := &t.Nodes[idx]
	if n.Na[a] == 0 {
		return math.Inf(1)
	}
	return n.Qa[a] + c*math.Sqrt(math.Log(float64(n.N))/float64(n.Na[a]))
}

// Select walks down from the root while the current node is fully expanded
// and has children. Ties go to the earliest move in enumeration order.
func (t *Tree) Select(c float64) int {
	idx := 0
	for {
		n := &t.Nodes[idx]
		if len(n.Untried) > 0 || !n.expanded() {
			return idx
		}
		best := -1
		bestScore := math.Inf(-1)
		for a, child := range n.Children {
			if child < 0 {
				continue
			}
			score := t.UCT(idx, a, c)
			if best < 0 || score > bestScore {
				best = a
				bestScore = score
			}
		}
		idx = n.Children[best]
	}
}

// Expand asks pol for one untried move of node idx, plays it, and returns
// the new child's index.
func (t *Tree) Expand(idx int, pol policy.Policy, rng *rand.Rand) int {
	n := &t.Nodes[idx]
	t.scratch = t.scratch[:0]
	for _, a := range n.Untried {
		t.scratch = append(t.scratch, n.Moves[a])
	}
	pick := pol.Choose(rng, t.scratch)
	a := n.Untried[pick]
	n.Untried = append(n.Untried[:pick], n.Untried[pick+1:]...)

	childState := t.backend.Play(n.State, n.Moves[a])
	// addNode may grow the arena, so n is not used past this point.
	child := t.addNode(childState, idx, a)
	t.Nodes[idx].Children[a] = child
	return child
}

// Backprop records v, the value for the player to move at leaf, along the
// path to the root. Each edge stores the value from its parent's point of
// view, so the sign flips at every level.
func (t *Tree) Backprop(leaf int, v float64) {
	idx := leaf
	result := v
	for {
		n := &t.Nodes[idx]
		n.N++
		if n.Parent < 0 {
			return
		}
		result = -result
		p := &t.Nodes[n.Parent]
		e := n.Edge
		p.Na[e]++
		p.Wa[e] += result
		p.Qa[e] = p.Wa[e] / float64(p.Na[e])
		idx = n.Parent
	}
}

// BestMove returns the root move whose child was visited most. Ties go to
// the earliest move; with nothing expanded it is the first legal move.
func (t *Tree) BestMove() (game.Move, error) {
	root := &t.Nodes[0]
	if root.Terminal() {
		return game.Move{}, game.ErrNoLegalMoves
	}
	best := -1
	bestN := -1
	for a, child := range root.Children {
		if child < 0 {
			continue
		}
		if n := t.Nodes[child].N; n > bestN {
			best = a
			bestN = n
		}
	}
	if best < 0 {
		return root.Moves[0], nil
	}
	return root.Moves[best], nil
}

// Visits returns the child visit count for each root move.
func (t *Tree) Visits() []int {
	root := &t.Nodes[0]
	out := make([]int, len(root.Moves))
	for a, child := range root.Children {
		if child >= 0 {
			out[a] = t.Nodes[child].N
		}
	}
	return out
}
