package cfg

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/l3aro/llvm2graph/pkg/dotgraph"
)

// graphNameRe matches the graph identifier emitted by -dot-cfg, which embeds
// the function name: "CFG for 'main' function" (quotes included, since the
// dot parser keeps identifiers verbatim).
var graphNameRe = regexp.MustCompile(`^"CFG for '(.+)' function"$`)

// FromDotSource builds a validated ControlFlowGraph from the dot source
// emitted by LLVM's -dot-cfg pass for one function.
//
// Errors are typed: *dotgraph.ParseError for unparseable source,
// *dotgraph.StructureError for well-formed dot that is not a -dot-cfg graph
// (wrong graph name, duplicate or undeclared nodes, no exit block),
// *dotgraph.FormatError for node labels in an unrecognized record format, and
// *MalformedControlFlowGraphError if the assembled graph fails validation.
// The graph is never silently repaired.
func FromDotSource(source string) (*ControlFlowGraph, error) {
	parsed, err := dotgraph.Parse(source)
	if err != nil {
		return nil, err
	}
	return fromDotGraph(source, parsed)
}

func fromDotGraph(source string, parsed *dotgraph.Graph) (*ControlFlowGraph, error) {
	m := graphNameRe.FindStringSubmatch(parsed.Name)
	if m == nil {
		return nil, &dotgraph.StructureError{
			Input:  source,
			Reason: fmt.Sprintf("could not interpret graph name `%s`", parsed.Name),
		}
	}

	g := &ControlFlowGraph{Name: m[1]}

	// Assign each dot node a dense index in first-seen order.
	nodeIndex := make(map[string]int, len(parsed.Nodes))
	blockNames := make(map[string]bool, len(parsed.Nodes))
	for i, node := range parsed.Nodes {
		if _, seen := nodeIndex[node.Name]; seen {
			return nil, &dotgraph.StructureError{
				Input:  source,
				Reason: fmt.Sprintf("duplicate node name `%s`", node.Name),
			}
		}
		nodeIndex[node.Name] = i

		name, text, err := basicBlockFromAttrs(node.Attrs)
		if err != nil {
			return nil, err
		}
		if blockNames[name] {
			return nil, &dotgraph.StructureError{
				Input:  source,
				Reason: fmt.Sprintf("duplicate basic block name `%s`", name),
			}
		}
		blockNames[name] = true

		g.Blocks = append(g.Blocks, BasicBlock{Index: i, Name: name, Text: text})
	}

	// LLVM's dot-cfg emitter does not mark the entry block explicitly. It
	// declares the entry block first, and node names sort consistently with
	// declaration order in observed output, so the lexicographically first
	// node name is the best available signal.
	if len(parsed.Nodes) > 0 {
		names := make([]string, 0, len(parsed.Nodes))
		for name := range nodeIndex {
			names = append(names, name)
		}
		sort.Strings(names)
		g.Blocks[nodeIndex[names[0]]].IsEntry = true
	}

	// A block is an exit block when its final instruction is a return.
	exits := 0
	for i := range g.Blocks {
		if isExitBlock(g.Blocks[i].Text) {
			g.Blocks[i].IsExit = true
			exits++
		}
	}
	if exits == 0 {
		return nil, &dotgraph.StructureError{
			Input:  source,
			Reason: "no exit block found",
		}
	}

	for _, edge := range parsed.Edges {
		// The edge's source port records which branch arm (true/false)
		// produced the edge. The arm information is discarded; only the
		// connectivity is kept.
		src, ok := nodeIndex[edge.Source]
		if !ok {
			return nil, &dotgraph.StructureError{
				Input:  source,
				Reason: fmt.Sprintf("edge references undeclared node `%s`", edge.Source),
			}
		}
		dst, ok := nodeIndex[edge.Dest]
		if !ok {
			return nil, &dotgraph.StructureError{
				Input:  source,
				Reason: fmt.Sprintf("edge references undeclared node `%s`", edge.Dest),
			}
		}
		g.Edges = append(g.Edges, Edge{Source: src, Dest: dst})
	}

	if err := g.Validate(false); err != nil {
		return nil, err
	}
	return g, nil
}

// basicBlockFromAttrs interprets one dot node's record-shaped label as a
// basic block. The label has the form
//
//	"{%2:\l  instr\l  instr\l...\l}"
//
// where the first \l-separated segment carries the block name, the middle
// segments carry instruction lines, and the final segment is the closing
// brace (possibly preceded by a |{<s0>T|<s1>F} branch-port subrecord).
func basicBlockFromAttrs(attrs map[string]string) (name, text string, err error) {
	label := attrs["label"]
	if !strings.HasPrefix(label, `"{`) {
		// An unexpected record opening means an LLVM dot format this
		// interpreter does not understand.
		return "", "", &dotgraph.FormatError{
			Attr:   label,
			Reason: "unhandled basic block label",
		}
	}

	// Lines are separated with \l escapes inside the label.
	lines := strings.Split(label, `\l`)
	name = strings.SplitN(strings.TrimPrefix(lines[0], `"{`), ":", 2)[0]

	// Every segment except the first and last is either blank or an
	// instruction line.
	var instrs []string
	if len(lines) < 2 {
		return name, "", nil
	}
	for _, line := range lines[1 : len(lines)-1] {
		if trimmed := strings.TrimLeft(line, " \t"); trimmed != "" {
			instrs = append(instrs, trimmed)
		}
	}
	return name, strings.Join(instrs, "\n"), nil
}

// isExitBlock reports whether the block's last instruction is a return.
func isExitBlock(text string) bool {
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	return strings.HasPrefix(last, "ret ")
}
