package cfg

import "fmt"

// MalformedControlFlowGraphError reports a graph that violates a structural
// invariant. The validator never repairs a graph: a silently "fixed" CFG
// would invalidate the correctness guarantees downstream labelling passes
// rely on.
type MalformedControlFlowGraphError struct {
	// Graph is the name of the offending graph.
	Graph  string
	Reason string
}

func (e *MalformedControlFlowGraphError) Error() string {
	return fmt.Sprintf("malformed control flow graph %q: %s", e.Graph, e.Reason)
}

// Validate checks the graph's structural invariants: exactly one entry
// block, at least one exit block, non-empty text on every block, edges whose
// endpoints exist, and connectivity between the entry block and every other
// block. In strict mode every block must be reachable from the entry block
// by following edge direction; otherwise undirected connectivity suffices.
//
// Validate is called at the end of construction and expansion, and may be
// invoked again by callers that mutate a graph afterwards.
func (g *ControlFlowGraph) Validate(strict bool) error {
	nodes := make([]validatedNode, len(g.Blocks))
	for i := range g.Blocks {
		nodes[i] = validatedNode{
			text:  g.Blocks[i].Text,
			entry: g.Blocks[i].IsEntry,
			exit:  g.Blocks[i].IsExit,
		}
	}
	return validateGraph(g.Name, nodes, g.Edges, strict)
}

// Validate checks the expanded graph against the same invariants as
// ControlFlowGraph.Validate.
func (g *FullFlowGraph) Validate(strict bool) error {
	nodes := make([]validatedNode, len(g.Instructions))
	for i := range g.Instructions {
		nodes[i] = validatedNode{
			text:  g.Instructions[i].Text,
			entry: g.Instructions[i].IsEntry,
			exit:  g.Instructions[i].IsExit,
		}
	}
	return validateGraph(g.Name, nodes, g.Edges, strict)
}

// validatedNode is the view of a node the validator needs; it is the same
// for basic blocks and for instructions.
type validatedNode struct {
	text  string
	entry bool
	exit  bool
}

func validateGraph(name string, nodes []validatedNode, edges []Edge, strict bool) error {
	fail := func(format string, args ...interface{}) error {
		return &MalformedControlFlowGraphError{
			Graph:  name,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	if len(nodes) == 0 {
		return fail("graph has no nodes")
	}

	entry := -1
	exits := 0
	for i, n := range nodes {
		if n.entry {
			if entry >= 0 {
				return fail("multiple entry nodes (%d and %d)", entry, i)
			}
			entry = i
		}
		if n.exit {
			exits++
		}
		if n.text == "" {
			return fail("node %d has no text", i)
		}
	}
	if entry < 0 {
		return fail("no entry node")
	}
	if exits == 0 {
		return fail("no exit node")
	}

	directed := make([][]int, len(nodes))
	undirected := make([][]int, len(nodes))
	for _, e := range edges {
		if e.Source < 0 || e.Source >= len(nodes) {
			return fail("edge source %d out of range", e.Source)
		}
		if e.Dest < 0 || e.Dest >= len(nodes) {
			return fail("edge dest %d out of range", e.Dest)
		}
		directed[e.Source] = append(directed[e.Source], e.Dest)
		undirected[e.Source] = append(undirected[e.Source], e.Dest)
		undirected[e.Dest] = append(undirected[e.Dest], e.Source)
	}

	adjacency := undirected
	if strict {
		adjacency = directed
	}

	seen := make([]bool, len(nodes))
	stack := []int{entry}
	seen[entry] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adjacency[n] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			if strict {
				return fail("node %d is unreachable from the entry node", i)
			}
			return fail("node %d is disconnected from the entry node", i)
		}
	}

	return nil
}
