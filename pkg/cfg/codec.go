package cfg

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes the graph with msgpack. All fields round-trip exactly,
// including block indices and the entry/exit markers, since consumers key on
// them.
func (g *ControlFlowGraph) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding control flow graph %q: %w", g.Name, err)
	}
	return data, nil
}

// DecodeControlFlowGraph deserializes a graph produced by Encode.
func DecodeControlFlowGraph(data []byte) (*ControlFlowGraph, error) {
	var g ControlFlowGraph
	if err := msgpack.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decoding control flow graph: %w", err)
	}
	return &g, nil
}

// Encode serializes the expanded graph with msgpack.
func (g *FullFlowGraph) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding full flow graph %q: %w", g.Name, err)
	}
	return data, nil
}

// DecodeFullFlowGraph deserializes a graph produced by FullFlowGraph.Encode.
func DecodeFullFlowGraph(data []byte) (*FullFlowGraph, error) {
	var g FullFlowGraph
	if err := msgpack.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decoding full flow graph: %w", err)
	}
	return &g, nil
}
