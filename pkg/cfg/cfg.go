// Package cfg builds typed control-flow graphs from the dot output of LLVM's
// -dot-cfg pass, and expands them into full per-instruction flow graphs.
//
// A ControlFlowGraph is a directed graph of basic blocks. Block indices are
// dense integers assigned in first-seen order and are stable for the life of
// the graph; downstream dataset generation keys on them.
package cfg

// BasicBlock is one node of a ControlFlowGraph: a maximal straight-line
// sequence of LLVM instructions.
type BasicBlock struct {
	// Index is the block's position in first-seen order, 0-based.
	Index int `json:"index" msgpack:"index"`
	// Name is the block label from the bytecode, e.g. "%2".
	Name string `json:"name" msgpack:"name"`
	// Text holds the block's instruction lines joined by newlines, in
	// program order. Never empty in a valid graph.
	Text string `json:"text" msgpack:"text"`
	// IsEntry marks the unique function entry block.
	IsEntry bool `json:"is_entry,omitempty" msgpack:"is_entry"`
	// IsExit marks a block whose final instruction is a return.
	IsExit bool `json:"is_exit,omitempty" msgpack:"is_exit"`
}

// Edge is a directed control transfer between two blocks (or, in a
// FullFlowGraph, between two instructions), identified by node index.
type Edge struct {
	Source int `json:"source" msgpack:"source"`
	Dest   int `json:"dest" msgpack:"dest"`
}

// ControlFlowGraph is the control-flow graph of a single function.
type ControlFlowGraph struct {
	// Name is the function's name.
	Name   string       `json:"name" msgpack:"name"`
	Blocks []BasicBlock `json:"blocks" msgpack:"blocks"`
	Edges  []Edge       `json:"edges" msgpack:"edges"`
}

// EntryIndex returns the index of the entry block, or -1 if none is marked.
func (g *ControlFlowGraph) EntryIndex() int {
	for i := range g.Blocks {
		if g.Blocks[i].IsEntry {
			return i
		}
	}
	return -1
}

// ExitIndices returns the indices of all exit blocks.
func (g *ControlFlowGraph) ExitIndices() []int {
	var exits []int
	for i := range g.Blocks {
		if g.Blocks[i].IsExit {
			exits = append(exits, i)
		}
	}
	return exits
}

// BlockByName returns the block with the given label.
func (g *ControlFlowGraph) BlockByName(name string) (*BasicBlock, bool) {
	for i := range g.Blocks {
		if g.Blocks[i].Name == name {
			return &g.Blocks[i], true
		}
	}
	return nil, false
}

// Successors returns the indices of blocks directly reachable from block i.
func (g *ControlFlowGraph) Successors(i int) []int {
	var succ []int
	for _, e := range g.Edges {
		if e.Source == i {
			succ = append(succ, e.Dest)
		}
	}
	return succ
}

// Predecessors returns the indices of blocks with an edge into block i.
func (g *ControlFlowGraph) Predecessors(i int) []int {
	var pred []int
	for _, e := range g.Edges {
		if e.Dest == i {
			pred = append(pred, e.Source)
		}
	}
	return pred
}
