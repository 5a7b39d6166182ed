package cfg

import (
	"fmt"
	"strings"
)

// Instruction is one node of a FullFlowGraph: a single LLVM instruction.
type Instruction struct {
	// Index is the instruction's position in block-then-instruction order,
	// 0-based and dense. This ordering is a correctness invariant; consumers
	// key on the index-to-instruction mapping.
	Index int `json:"index" msgpack:"index"`
	// Name is "<block name>.<offset in block>", e.g. "%2.0".
	Name string `json:"name" msgpack:"name"`
	// Text is the instruction text.
	Text string `json:"text" msgpack:"text"`
	// BasicBlock is the index of the originating block in the source graph.
	BasicBlock int  `json:"basic_block" msgpack:"basic_block"`
	IsEntry    bool `json:"is_entry,omitempty" msgpack:"is_entry"`
	IsExit     bool `json:"is_exit,omitempty" msgpack:"is_exit"`
}

// FullFlowGraph is a control-flow graph expanded to single-instruction
// granularity. Built once and read-only afterwards. Node and edge indices
// cannot be compared with the source ControlFlowGraph's.
type FullFlowGraph struct {
	Name         string        `json:"name" msgpack:"name"`
	Instructions []Instruction `json:"instructions" msgpack:"instructions"`
	Edges        []Edge        `json:"edges" msgpack:"edges"`
}

// EntryIndex returns the index of the entry instruction, or -1.
func (g *FullFlowGraph) EntryIndex() int {
	for i := range g.Instructions {
		if g.Instructions[i].IsEntry {
			return i
		}
	}
	return -1
}

// ExitIndices returns the indices of all exit instructions.
func (g *FullFlowGraph) ExitIndices() []int {
	var exits []int
	for i := range g.Instructions {
		if g.Instructions[i].IsExit {
			exits = append(exits, i)
		}
	}
	return exits
}

// ExpandOptions controls branch handling during expansion.
type ExpandOptions struct {
	// DropUnconditionalBranches omits `br label %X` instructions; the edge
	// out of the block already carries the same information.
	DropUnconditionalBranches bool
	// StripBranchLabels keeps only the condition component of a conditional
	// branch, discarding the `label %T, label %F` operands.
	StripBranchLabels bool
}

// blockSpan records the first and last instruction index produced for one
// basic block, used to translate block-level edges to instruction-level
// edges.
type blockSpan struct {
	start, end int
}

// BuildFullFlowGraph expands the control-flow graph so that every node holds
// a single instruction. Intra-block sequencing becomes a chain of edges, and
// each block-level edge is rewired from the last retained instruction of its
// source block to the first instruction of its destination block. The
// receiver is not mutated.
//
// The result is validated before being returned.
func (g *ControlFlowGraph) BuildFullFlowGraph(opts ExpandOptions) (*FullFlowGraph, error) {
	if err := g.Validate(false); err != nil {
		return nil, err
	}

	fg := &FullFlowGraph{Name: g.Name}
	spans := make([]blockSpan, len(g.Blocks))

	// One counter across all blocks: instruction indices are assigned in
	// block-then-instruction order.
	counter := 0

	for bi := range g.Blocks {
		block := &g.Blocks[bi]
		instructions := SplitInstructions(block.Text)
		start := counter

		for ii, instruction := range instructions {
			if ii == len(instructions)-1 && strings.HasPrefix(instruction, "br ") {
				// Branches are either conditional,
				//     br i1 %6, label %7, label %8
				// or unconditional,
				//     br label %9
				components := strings.Split(instruction, ", ")
				if len(components) == 1 {
					// An unconditional branch carries no information beyond
					// what the outgoing edge already includes.
					if opts.DropUnconditionalBranches {
						continue
					}
				} else if opts.StripBranchLabels {
					instruction = components[0]
				}
			}

			if counter > start {
				fg.Edges = append(fg.Edges, Edge{Source: counter - 1, Dest: counter})
			}
			fg.Instructions = append(fg.Instructions, Instruction{
				Index:      counter,
				Name:       fmt.Sprintf("%s.%d", block.Name, counter-start),
				Text:       instruction,
				BasicBlock: block.Index,
			})
			counter++
		}

		if counter == start {
			// The block held nothing but a dropped branch. Producing an
			// empty block would corrupt the edge rewiring, so fail instead
			// of guessing.
			return nil, &MalformedControlFlowGraphError{
				Graph:  g.Name,
				Reason: fmt.Sprintf("dropping the unconditional branch leaves block %q empty", block.Name),
			}
		}
		spans[bi] = blockSpan{start: start, end: counter - 1}
	}

	// Translate block-level edges using the per-block spans.
	for _, e := range g.Edges {
		fg.Edges = append(fg.Edges, Edge{
			Source: spans[e.Source].end,
			Dest:   spans[e.Dest].start,
		})
	}

	// Carry entry/exit markers onto the first and last instructions of the
	// originating blocks.
	for bi := range g.Blocks {
		if g.Blocks[bi].IsEntry {
			fg.Instructions[spans[bi].start].IsEntry = true
		}
		if g.Blocks[bi].IsExit {
			fg.Instructions[spans[bi].end].IsExit = true
		}
	}

	if err := fg.Validate(false); err != nil {
		return nil, err
	}
	return fg, nil
}

// SplitInstructions splits a basic block's text into individual
// instructions. LLVM's pretty-printer wraps long lines by prefixing the
// continuation with an ellipsis marker; such continuations are spliced back
// onto the previous line, since they are not instruction boundaries.
func SplitInstructions(text string) []string {
	var instructions []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "... ") && len(instructions) > 0 {
			instructions[len(instructions)-1] += line[len("..."):]
			continue
		}
		if line != "" {
			instructions = append(instructions, line)
		}
	}
	return instructions
}
