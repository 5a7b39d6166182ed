package dotgraph

import (
	"errors"
	"strings"
	"testing"
)

// Dot source produced by LLVM's -dot-cfg pass for the DoSomething() function
// of a simple C program.
const simpleCFGDot = `
digraph "CFG for 'DoSomething' function" {
  label="CFG for 'DoSomething' function";

  Node0x7f86c670c590 [shape=record,label="{%2:\l  %3 = alloca i32, align 4\l  %4 = alloca i32, align 4\l  %5 = alloca i32, align 4\l  store i32 %0, i32* %4, align 4\l  store i32 %1, i32* %5, align 4\l  %6 = load i32, i32* %4, align 4\l  %7 = srem i32 %6, 5\l  %8 = icmp ne i32 %7, 0\l  br i1 %8, label %9, label %12\l|{<s0>T|<s1>F}}"];
  Node0x7f86c670c590:s0 -> Node0x7f86c65001a0;
  Node0x7f86c670c590:s1 -> Node0x7f86c65001f0;
  Node0x7f86c65001a0 [shape=record,label="{%9:\l\l  %10 = load i32, i32* %4, align 4\l  %11 = mul nsw i32 %10, 10\l  store i32 %11, i32* %3, align 4\l  br label %18\l}"];
  Node0x7f86c65001a0 -> Node0x7f86c65084b0;
  Node0x7f86c65001f0 [shape=record,label="{%12:\l\l  %13 = load i32, i32* %4, align 4\l  %14 = sitofp i32 %13 to float\l  %15 = fpext float %14 to double\l  %16 = call double @llvm.pow.f64(double %15, double 2.500000e+00)\l  %17 = fptosi double %16 to i32\l  store i32 %17, i32* %3, align 4\l  br label %18\l}"];
  Node0x7f86c65001f0 -> Node0x7f86c65084b0;
  Node0x7f86c65084b0 [shape=record,label="{%18:\l\l  %19 = load i32, i32* %3, align 4\l  ret i32 %19\l}"];
  }
`

func TestParseSimpleCFG(t *testing.T) {
	g, err := Parse(simpleCFGDot)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if g.Name != `"CFG for 'DoSomething' function"` {
		t.Errorf("unexpected graph name: %s", g.Name)
	}

	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 4 {
		t.Fatalf("expected 4 edges, got %d", len(g.Edges))
	}

	// Node declaration order is preserved.
	if g.Nodes[0].Name != "Node0x7f86c670c590" {
		t.Errorf("unexpected first node: %s", g.Nodes[0].Name)
	}

	// Labels are kept verbatim, quotes and \l escapes included.
	label := g.Nodes[0].Attrs["label"]
	if !strings.HasPrefix(label, `"{%2:\l`) {
		t.Errorf("unexpected label prefix: %s", label)
	}
	if g.Nodes[0].Attrs["shape"] != "record" {
		t.Errorf("unexpected shape attr: %s", g.Nodes[0].Attrs["shape"])
	}
}

func TestParseEdgePorts(t *testing.T) {
	g, err := Parse(simpleCFGDot)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	// The two edges out of the branch block carry s0/s1 ports.
	if g.Edges[0].Source != "Node0x7f86c670c590" || g.Edges[0].SourcePort != "s0" {
		t.Errorf("edge 0: got source %s port %q", g.Edges[0].Source, g.Edges[0].SourcePort)
	}
	if g.Edges[1].SourcePort != "s1" {
		t.Errorf("edge 1: got port %q", g.Edges[1].SourcePort)
	}

	// Unconditional edges have no port.
	if g.Edges[2].SourcePort != "" {
		t.Errorf("edge 2: got port %q, want none", g.Edges[2].SourcePort)
	}
	if g.Edges[2].Dest != "Node0x7f86c65084b0" {
		t.Errorf("edge 2: got dest %s", g.Edges[2].Dest)
	}
}

func TestParseGraphAttrs(t *testing.T) {
	g, err := Parse(simpleCFGDot)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if got := g.Attrs["label"]; got != `"CFG for 'DoSomething' function"` {
		t.Errorf("unexpected graph label: %s", got)
	}
}

func TestParseEdgeChain(t *testing.T) {
	g, err := Parse(`digraph { a -> b -> c; }`)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges from chain, got %d", len(g.Edges))
	}
	if g.Edges[0].Source != "a" || g.Edges[0].Dest != "b" {
		t.Errorf("edge 0: %s -> %s", g.Edges[0].Source, g.Edges[0].Dest)
	}
	if g.Edges[1].Source != "b" || g.Edges[1].Dest != "c" {
		t.Errorf("edge 1: %s -> %s", g.Edges[1].Source, g.Edges[1].Dest)
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("digraph { this is not dot")
	if err == nil {
		t.Fatal("expected error for invalid dot source")
	}

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Input == "" {
		t.Error("ParseError should carry the offending input")
	}
	if perr.Unwrap() == nil {
		t.Error("ParseError should wrap the underlying parser error")
	}
}

func TestParseMultipleGraphs(t *testing.T) {
	_, err := Parse("digraph a {}\ndigraph b {}")
	if err == nil {
		t.Fatal("expected error for multiple graphs")
	}

	var serr *StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *StructureError, got %T", err)
	}
}

func TestParseEmptySource(t *testing.T) {
	_, err := Parse("")
	if err == nil {
		t.Fatal("expected error for empty source")
	}
	// Empty text is not syntactically valid dot, so it is rejected by the
	// grammar rather than by the one-graph structural check.
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestNodeLookup(t *testing.T) {
	g, err := Parse(simpleCFGDot)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	n, ok := g.Node("Node0x7f86c65084b0")
	if !ok {
		t.Fatal("Node() did not find declared node")
	}
	if !strings.Contains(n.Attrs["label"], "ret i32 %19") {
		t.Errorf("unexpected label: %s", n.Attrs["label"])
	}

	if _, ok := g.Node("NodeMissing"); ok {
		t.Error("Node() found a node that was never declared")
	}
}
