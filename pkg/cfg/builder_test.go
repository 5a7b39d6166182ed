package cfg

import (
	"errors"
	"strings"
	"testing"

	"github.com/l3aro/llvm2graph/pkg/dotgraph"
)

// branchCFGDot is a -dot-cfg style graph for a function with one conditional
// branch and a join block:
//
//	entry %2 -> {%5 | %7} -> %12 -> ret
const branchCFGDot = `
digraph "CFG for 'DoSomething' function" {
  label="CFG for 'DoSomething' function";

  NodeA [shape=record,label="{%2:\l  %3 = srem i32 %0, 5\l  %4 = icmp eq i32 %3, 0\l  br i1 %4, label %7, label %5\l|{<s0>T|<s1>F}}"];
  NodeA:s0 -> NodeC;
  NodeA:s1 -> NodeB;
  NodeB [shape=record,label="{%5:\l\l  %6 = mul nsw i32 %0, 10\l  br label %12\l}"];
  NodeB -> NodeD;
  NodeC [shape=record,label="{%7:\l\l  %8 = sitofp i32 %0 to float\l  br label %12\l}"];
  NodeC -> NodeD;
  NodeD [shape=record,label="{%12:\l\l  %13 = phi i32 [ %6, %5 ], [ %8, %7 ]\l  ret i32 %13\l}"];
}
`

func TestFromDotSourceBlocks(t *testing.T) {
	g, err := FromDotSource(branchCFGDot)
	if err != nil {
		t.Fatalf("FromDotSource() failed: %v", err)
	}

	if g.Name != "DoSomething" {
		t.Errorf("expected graph name DoSomething, got %q", g.Name)
	}

	// One block per node statement, indexed densely in first-seen order.
	if len(g.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(g.Blocks))
	}
	wantNames := []string{"%2", "%5", "%7", "%12"}
	for i, want := range wantNames {
		if g.Blocks[i].Index != i {
			t.Errorf("block %d: index %d", i, g.Blocks[i].Index)
		}
		if g.Blocks[i].Name != want {
			t.Errorf("block %d: name %q, want %q", i, g.Blocks[i].Name, want)
		}
		if g.Blocks[i].Text == "" {
			t.Errorf("block %d: empty text", i)
		}
	}

	// Blank label segments are dropped, instruction order is preserved.
	wantText := "%3 = srem i32 %0, 5\n%4 = icmp eq i32 %3, 0\nbr i1 %4, label %7, label %5"
	if g.Blocks[0].Text != wantText {
		t.Errorf("block 0 text:\n%s\nwant:\n%s", g.Blocks[0].Text, wantText)
	}
}

func TestFromDotSourceEntryAndExit(t *testing.T) {
	g, err := FromDotSource(branchCFGDot)
	if err != nil {
		t.Fatalf("FromDotSource() failed: %v", err)
	}

	if got := g.EntryIndex(); got != 0 {
		t.Errorf("entry index %d, want 0", got)
	}
	if exits := g.ExitIndices(); len(exits) != 1 || exits[0] != 3 {
		t.Errorf("exit indices %v, want [3]", exits)
	}
	if !g.Blocks[0].IsEntry {
		t.Error("block %2 not marked entry")
	}
	if !g.Blocks[3].IsExit {
		t.Error("block %12 not marked exit")
	}
}

func TestFromDotSourceEdges(t *testing.T) {
	g, err := FromDotSource(branchCFGDot)
	if err != nil {
		t.Fatalf("FromDotSource() failed: %v", err)
	}

	want := []Edge{{0, 2}, {0, 1}, {1, 3}, {2, 3}}
	if len(g.Edges) != len(want) {
		t.Fatalf("expected %d edges, got %d: %v", len(want), len(g.Edges), g.Edges)
	}
	for i, e := range want {
		if g.Edges[i] != e {
			t.Errorf("edge %d: got %v, want %v", i, g.Edges[i], e)
		}
	}

	if succ := g.Successors(0); len(succ) != 2 {
		t.Errorf("block 0 successors %v, want 2 of them", succ)
	}
	if pred := g.Predecessors(3); len(pred) != 2 {
		t.Errorf("block 3 predecessors %v, want 2 of them", pred)
	}
}

func TestFromDotSourceRealLLVMOutput(t *testing.T) {
	// Verbatim -dot-cfg output, with hex-pointer node names and the
	// branch-port subrecord on the first block.
	const src = `
digraph "CFG for 'DoSomething' function" {
  label="CFG for 'DoSomething' function";

  Node0x7f86c670c590 [shape=record,label="{%2:\l  %6 = load i32, i32* %4, align 4\l  %7 = srem i32 %6, 5\l  %8 = icmp ne i32 %7, 0\l  br i1 %8, label %9, label %12\l|{<s0>T|<s1>F}}"];
  Node0x7f86c670c590:s0 -> Node0x7f86c65001a0;
  Node0x7f86c670c590:s1 -> Node0x7f86c65001f0;
  Node0x7f86c65001a0 [shape=record,label="{%9:\l\l  %11 = mul nsw i32 %10, 10\l  br label %18\l}"];
  Node0x7f86c65001a0 -> Node0x7f86c65084b0;
  Node0x7f86c65001f0 [shape=record,label="{%12:\l\l  %17 = fptosi double %16 to i32\l  br label %18\l}"];
  Node0x7f86c65001f0 -> Node0x7f86c65084b0;
  Node0x7f86c65084b0 [shape=record,label="{%18:\l\l  %19 = load i32, i32* %3, align 4\l  ret i32 %19\l}"];
  }
`
	g, err := FromDotSource(src)
	if err != nil {
		t.Fatalf("FromDotSource() failed: %v", err)
	}
	if len(g.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(g.Blocks))
	}
	if exits := g.ExitIndices(); len(exits) != 1 || g.Blocks[exits[0]].Name != "%18" {
		t.Errorf("exit blocks %v, want the %%18 block", exits)
	}
	// The port suffixes are stripped from edge sources.
	for _, e := range g.Edges {
		if e.Source < 0 || e.Source >= len(g.Blocks) {
			t.Errorf("edge source %d out of range", e.Source)
		}
	}
}

func TestFromDotSourceDuplicateBlockName(t *testing.T) {
	const src = `
digraph "CFG for 'f' function" {
  NodeA [shape=record,label="{%1:\l  br label %1\l}"];
  NodeB [shape=record,label="{%1:\l  ret void\l}"];
  NodeA -> NodeB;
}
`
	_, err := FromDotSource(src)
	if err == nil {
		t.Fatal("expected error for duplicate block names")
	}
	var serr *dotgraph.StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *dotgraph.StructureError, got %T", err)
	}
	if !strings.Contains(serr.Reason, "duplicate") {
		t.Errorf("unexpected reason: %s", serr.Reason)
	}
}

func TestFromDotSourceNoExitBlock(t *testing.T) {
	const src = `
digraph "CFG for 'f' function" {
  NodeA [shape=record,label="{%1:\l  br label %2\l}"];
  NodeB [shape=record,label="{%2:\l  br label %1\l}"];
  NodeA -> NodeB;
  NodeB -> NodeA;
}
`
	_, err := FromDotSource(src)
	if err == nil {
		t.Fatal("expected error for graph with no exit block")
	}
	var serr *dotgraph.StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *dotgraph.StructureError, got %T", err)
	}
	if serr.Reason != "no exit block found" {
		t.Errorf("unexpected reason: %s", serr.Reason)
	}
}

func TestFromDotSourceUnhandledLabel(t *testing.T) {
	// A label that does not open with the record token signals an LLVM dot
	// format this parser does not understand.
	const src = `
digraph "CFG for 'f' function" {
  NodeA [shape=record,label="plain text"];
}
`
	_, err := FromDotSource(src)
	if err == nil {
		t.Fatal("expected error for unhandled label format")
	}
	var ferr *dotgraph.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *dotgraph.FormatError, got %T", err)
	}
}

func TestFromDotSourceBadGraphName(t *testing.T) {
	_, err := FromDotSource(`digraph notacfg { NodeA [label="{%1:\l  ret void\l}"]; }`)
	if err == nil {
		t.Fatal("expected error for non-CFG graph name")
	}
	var serr *dotgraph.StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *dotgraph.StructureError, got %T", err)
	}
}

func TestFromDotSourceUndeclaredEdgeEndpoint(t *testing.T) {
	const src = `
digraph "CFG for 'f' function" {
  NodeA [shape=record,label="{%1:\l  ret void\l}"];
  NodeA -> NodeMissing;
}
`
	_, err := FromDotSource(src)
	if err == nil {
		t.Fatal("expected error for edge to undeclared node")
	}
	var serr *dotgraph.StructureError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *dotgraph.StructureError, got %T", err)
	}
}

func TestFromDotSourceSingleBlock(t *testing.T) {
	g, err := FromDotSource(`digraph "CFG for 'tiny' function" { NodeA [shape=record,label="{%0:\l  ret void\l}"]; }`)
	if err != nil {
		t.Fatalf("FromDotSource() failed: %v", err)
	}
	if len(g.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(g.Blocks))
	}
	if !g.Blocks[0].IsEntry || !g.Blocks[0].IsExit {
		t.Error("single block should be both entry and exit")
	}
}
