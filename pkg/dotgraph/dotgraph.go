// Package dotgraph parses dot-language documents into a generic directed
// multigraph of named nodes and edges with string attributes.
//
// The parser is a thin typed layer over gonum's dot grammar. Identifiers and
// attribute values are kept exactly as they appear in the source: a quoted
// value retains its surrounding double quotes and any backslash escapes
// (LLVM's record labels rely on literal `\l` separators). Interpreting those
// values is the caller's concern.
package dotgraph

import (
	"fmt"

	"gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"
)

// Node is a node statement from a dot document.
type Node struct {
	// Name is the node identifier, e.g. "Node0x7f86c670c590".
	Name string
	// Attrs holds the node's attribute list. Values are verbatim source text.
	Attrs map[string]string
}

// Edge is a directed edge statement from a dot document.
type Edge struct {
	// Source is the source node identifier, without any port suffix.
	Source string
	// SourcePort is the port on the source node ("s0", "s1", ...), or empty.
	// LLVM's -dot-cfg pass uses ports to mark the true/false arms of a
	// conditional branch.
	SourcePort string
	// Dest is the destination node identifier.
	Dest string
	// Attrs holds the edge's attribute list.
	Attrs map[string]string
}

// Graph is a parsed dot document: one directed graph with named nodes and
// edges. Only explicitly declared nodes appear in Nodes; an edge may
// reference an identifier that has no node statement.
type Graph struct {
	// Name is the graph identifier, verbatim (a quoted identifier keeps its
	// quotes, e.g. `"CFG for 'main' function"`).
	Name string
	// Attrs holds graph-level attributes (label, etc.).
	Attrs map[string]string
	Nodes []Node
	Edges []Edge
}

// Node returns the declared node with the given name.
func (g *Graph) Node(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// Parse parses dot source text into a Graph.
//
// It returns a *ParseError if the text is not syntactically valid dot, and a
// *StructureError if the document does not contain exactly one top-level
// graph statement. The LLVM graph-printing passes emit exactly one graph per
// invocation, so anything else is an upstream contract violation.
func Parse(source string) (*Graph, error) {
	file, err := dot.ParseString(source)
	if err != nil {
		return nil, &ParseError{Input: source, Err: err}
	}

	if len(file.Graphs) != 1 {
		return nil, &StructureError{
			Input:  source,
			Reason: fmt.Sprintf("expected 1 graph in dot source, found %d", len(file.Graphs)),
		}
	}

	src := file.Graphs[0]
	g := &Graph{
		Name:  src.ID,
		Attrs: make(map[string]string),
	}

	if err := g.addStmts(source, src.Stmts); err != nil {
		return nil, err
	}
	return g, nil
}

// addStmts folds a statement list into the graph.
func (g *Graph) addStmts(source string, stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.NodeStmt:
			g.Nodes = append(g.Nodes, Node{
				Name:  s.Node.ID,
				Attrs: attrMap(s.Attrs),
			})
		case *ast.EdgeStmt:
			if err := g.addEdges(source, s); err != nil {
				return err
			}
		case *ast.Attr:
			g.Attrs[s.Key] = s.Val
		case *ast.AttrStmt:
			if s.Kind == ast.GraphKind {
				for k, v := range attrMap(s.Attrs) {
					g.Attrs[k] = v
				}
			}
			// Node and edge attribute defaults are not used by the LLVM
			// graph printers and are ignored here.
		case *ast.Subgraph:
			return &StructureError{
				Input:  source,
				Reason: "subgraph statements are not supported",
			}
		}
	}
	return nil
}

// addEdges expands one edge statement (possibly a chain a -> b -> c) into
// individual edges.
func (g *Graph) addEdges(source string, stmt *ast.EdgeStmt) error {
	attrs := attrMap(stmt.Attrs)

	from := stmt.From
	for to := stmt.To; to != nil; to = to.To {
		src, srcPort, err := vertexName(source, from)
		if err != nil {
			return err
		}
		dst, _, err := vertexName(source, to.Vertex)
		if err != nil {
			return err
		}
		g.Edges = append(g.Edges, Edge{
			Source:     src,
			SourcePort: srcPort,
			Dest:       dst,
			Attrs:      attrs,
		})
		from = to.Vertex
	}
	return nil
}

// vertexName resolves an edge endpoint to a node name and optional port.
func vertexName(source string, v ast.Vertex) (name, port string, err error) {
	n, ok := v.(*ast.Node)
	if !ok {
		return "", "", &StructureError{
			Input:  source,
			Reason: fmt.Sprintf("unsupported edge endpoint %T", v),
		}
	}
	if n.Port != nil {
		port = n.Port.ID
	}
	return n.ID, port, nil
}

func attrMap(attrs []*ast.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Val
	}
	return m
}
