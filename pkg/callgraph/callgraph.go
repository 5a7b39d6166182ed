// Package callgraph builds module-level call graphs from the dot output of
// LLVM's -dot-callgraph pass.
//
// The call graph is a directed multigraph: nodes are function names, and
// each call site contributes its own edge, so a function calling another
// twice produces two parallel edges. One sentinel node, "external node",
// stands for everything outside the analyzed module.
package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/multi"

	"github.com/l3aro/llvm2graph/pkg/dotgraph"
)

// ExternalNode is the name LLVM gives the sentinel node representing calls
// from or to code outside the analyzed module.
const ExternalNode = "external node"

// node is a gonum multigraph node carrying a function name.
type node struct {
	id   int64
	name string
}

func (n node) ID() int64 { return n.id }

// CallGraph is a directed call multigraph for one module.
type CallGraph struct {
	graph *multi.DirectedGraph
	// byName maps function names to graph nodes. Distinct dot nodes whose
	// labels resolve to the same function name are merged here.
	byName map[string]node
	// selfCalls records directly recursive call sites, one entry per site.
	// Self loops are kept out of the multigraph and tracked here.
	selfCalls []string
	// merged records function names that appeared on more than one dot node.
	merged []string
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		graph:  multi.NewDirectedGraph(),
		byName: make(map[string]node),
	}
}

// addFunction registers a graph node for a function name not seen before.
func (g *CallGraph) addFunction(name string) node {
	n := node{id: int64(len(g.byName)), name: name}
	g.graph.AddNode(n)
	g.byName[name] = n
	return n
}

// MergedFunctions returns function names that were carried by more than one
// dot node and were merged into a single graph node. Empty for well-formed
// LLVM output.
func (g *CallGraph) MergedFunctions() []string {
	return g.merged
}

// FromDotSource builds a CallGraph from the dot source emitted by LLVM's
// -dot-callgraph pass for one module.
//
// Dot nodes without a label attribute are rendering artifacts, not
// functions, and are dropped along with their edges. Every other node's
// label must have the form "{<name>}"; anything else raises a
// *dotgraph.FormatError.
func FromDotSource(source string) (*CallGraph, error) {
	parsed, err := dotgraph.Parse(source)
	if err != nil {
		return nil, err
	}

	g := newCallGraph()

	// Dot gives nodes fairly arbitrary synthetic identifiers; relabel them
	// by the function name carried in the label.
	names := make(map[string]string, len(parsed.Nodes))
	for _, dn := range parsed.Nodes {
		label, ok := dn.Attrs["label"]
		if !ok {
			continue
		}
		name, err := functionNameFromLabel(label)
		if err != nil {
			return nil, err
		}
		names[dn.Name] = name

		if _, seen := g.byName[name]; seen {
			// Two dot nodes resolving to one name: multigraph semantics
			// merge them. Not expected from LLVM output, so the merge is
			// recorded for callers to report.
			g.merged = append(g.merged, name)
			continue
		}
		g.addFunction(name)
	}

	for _, de := range parsed.Edges {
		src, ok := names[de.Source]
		if !ok {
			continue // edge from a dropped artifact node
		}
		dst, ok := names[de.Dest]
		if !ok {
			continue
		}
		from := g.byName[src]
		to := g.byName[dst]
		if from.id == to.id {
			// LLVM emits a self edge for a directly recursive function.
			g.selfCalls = append(g.selfCalls, src)
			continue
		}
		g.graph.SetLine(g.graph.NewLine(from, to))
	}

	return g, nil
}

// functionNameFromLabel unwraps a "{<name>}" node label.
func functionNameFromLabel(label string) (string, error) {
	if !strings.HasPrefix(label, `"{`) || !strings.HasSuffix(label, `}"`) {
		return "", &dotgraph.FormatError{
			Attr:   label,
			Reason: "invalid call graph node label",
		}
	}
	return label[2 : len(label)-2], nil
}

// Functions returns the names of all functions in the graph, sorted,
// excluding the external sentinel.
func (g *CallGraph) Functions() []string {
	names := make([]string, 0, len(g.byName))
	for name := range g.byName {
		if name == ExternalNode {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasFunction reports whether the graph has a node for the given function.
func (g *CallGraph) HasFunction(name string) bool {
	_, ok := g.byName[name]
	return ok
}

// Calls returns the callees of the given function, one entry per call site.
func (g *CallGraph) Calls(caller string) []string {
	from, ok := g.byName[caller]
	if !ok {
		return nil
	}
	var callees []string
	it := g.graph.From(from.id)
	for it.Next() {
		to := it.Node().(node)
		lines := g.graph.Lines(from.id, to.id)
		for i := 0; i < lines.Len(); i++ {
			callees = append(callees, to.name)
		}
	}
	for _, name := range g.selfCalls {
		if name == caller {
			callees = append(callees, caller)
		}
	}
	sort.Strings(callees)
	return callees
}

// CallSiteCount returns the total number of call sites in the graph,
// sentinel edges included.
func (g *CallGraph) CallSiteCount() int {
	count := len(g.selfCalls)
	nodes := g.graph.Nodes()
	for nodes.Next() {
		u := nodes.Node()
		it := g.graph.From(u.ID())
		for it.Next() {
			count += g.graph.Lines(u.ID(), it.Node().ID()).Len()
		}
	}
	return count
}

// CallCountsByFunction builds a table mapping every function name (sentinel
// excluded) to its number of call sites. Calls originating from the external
// sentinel are not counted; functions that are never called appear with
// count zero.
func (g *CallGraph) CallCountsByFunction() map[string]int {
	counts := make(map[string]int, len(g.byName))
	for name := range g.byName {
		if name != ExternalNode {
			counts[name] = 0
		}
	}

	nodes := g.graph.Nodes()
	for nodes.Next() {
		u := nodes.Node().(node)
		if u.name == ExternalNode {
			continue
		}
		it := g.graph.From(u.id)
		for it.Next() {
			v := it.Node().(node)
			if v.name == ExternalNode {
				continue
			}
			counts[v.name] += g.graph.Lines(u.id, v.id).Len()
		}
	}
	for _, name := range g.selfCalls {
		if name != ExternalNode {
			counts[name]++
		}
	}
	return counts
}

// String summarizes the graph.
func (g *CallGraph) String() string {
	return fmt.Sprintf("call graph: %d functions, %d call sites", len(g.Functions()), g.CallSiteCount())
}
