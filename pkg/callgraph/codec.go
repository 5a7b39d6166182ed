package callgraph

import (
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// wireGraph is the serialized shape of a CallGraph: the node set plus one
// caller/callee pair per call site.
type wireGraph struct {
	Names     []string    `msgpack:"names"`
	Calls     [][2]string `msgpack:"calls"`
	SelfCalls []string    `msgpack:"self_calls"`
	Merged    []string    `msgpack:"merged"`
}

// Encode serializes the graph to msgpack. Decode restores an equivalent
// graph: same functions, same call multiplicities, same merge report.
func (g *CallGraph) Encode() ([]byte, error) {
	wire := wireGraph{
		SelfCalls: g.selfCalls,
		Merged:    g.merged,
	}

	for name := range g.byName {
		wire.Names = append(wire.Names, name)
	}
	sort.Strings(wire.Names)

	nodes := g.graph.Nodes()
	for nodes.Next() {
		u := nodes.Node().(node)
		it := g.graph.From(u.id)
		for it.Next() {
			v := it.Node().(node)
			for i := g.graph.Lines(u.id, v.id).Len(); i > 0; i-- {
				wire.Calls = append(wire.Calls, [2]string{u.name, v.name})
			}
		}
	}
	sort.Slice(wire.Calls, func(i, j int) bool {
		if wire.Calls[i][0] != wire.Calls[j][0] {
			return wire.Calls[i][0] < wire.Calls[j][0]
		}
		return wire.Calls[i][1] < wire.Calls[j][1]
	})

	data, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding call graph: %w", err)
	}
	return data, nil
}

// Decode deserializes a call graph encoded with Encode.
func Decode(data []byte) (*CallGraph, error) {
	var wire wireGraph
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decoding call graph: %w", err)
	}

	g := newCallGraph()
	for _, name := range wire.Names {
		g.addFunction(name)
	}
	for _, call := range wire.Calls {
		from, ok := g.byName[call[0]]
		if !ok {
			return nil, fmt.Errorf("decoding call graph: call from unknown function %q", call[0])
		}
		to, ok := g.byName[call[1]]
		if !ok {
			return nil, fmt.Errorf("decoding call graph: call to unknown function %q", call[1])
		}
		g.graph.SetLine(g.graph.NewLine(from, to))
	}
	g.selfCalls = wire.SelfCalls
	g.merged = wire.Merged
	return g, nil
}
