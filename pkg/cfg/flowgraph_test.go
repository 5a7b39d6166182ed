package cfg

import (
	"errors"
	"testing"
)

func mustBuildCFG(t *testing.T, source string) *ControlFlowGraph {
	t.Helper()
	g, err := FromDotSource(source)
	if err != nil {
		t.Fatalf("FromDotSource() failed: %v", err)
	}
	return g
}

func TestBuildFullFlowGraphPreservesInstructionCount(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}

	// With no flags set, one node per instruction: 3 + 2 + 2 + 2.
	if len(fg.Instructions) != 9 {
		t.Fatalf("expected 9 instruction nodes, got %d", len(fg.Instructions))
	}

	// Indices are dense and assigned in block-then-instruction order.
	for i, inst := range fg.Instructions {
		if inst.Index != i {
			t.Errorf("instruction %d has index %d", i, inst.Index)
		}
	}
	wantBlocks := []int{0, 0, 0, 1, 1, 2, 2, 3, 3}
	for i, want := range wantBlocks {
		if fg.Instructions[i].BasicBlock != want {
			t.Errorf("instruction %d: basic_block %d, want %d", i, fg.Instructions[i].BasicBlock, want)
		}
	}

	// Instruction names combine the block name and in-block offset.
	if fg.Instructions[0].Name != "%2.0" {
		t.Errorf("instruction 0 name %q, want %%2.0", fg.Instructions[0].Name)
	}
	if fg.Instructions[3].Name != "%5.0" {
		t.Errorf("instruction 3 name %q, want %%5.0", fg.Instructions[3].Name)
	}
}

func TestBuildFullFlowGraphEdges(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}

	has := func(src, dst int) bool {
		for _, e := range fg.Edges {
			if e.Source == src && e.Dest == dst {
				return true
			}
		}
		return false
	}

	// Sequential chains inside each block.
	for _, e := range []Edge{{0, 1}, {1, 2}, {3, 4}, {5, 6}, {7, 8}} {
		if !has(e.Source, e.Dest) {
			t.Errorf("missing sequential edge %d -> %d", e.Source, e.Dest)
		}
	}
	// Block-level edges rewired last-of-source -> first-of-dest.
	for _, e := range []Edge{{2, 5}, {2, 3}, {4, 7}, {6, 7}} {
		if !has(e.Source, e.Dest) {
			t.Errorf("missing control edge %d -> %d", e.Source, e.Dest)
		}
	}
	if len(fg.Edges) != 9 {
		t.Errorf("expected 9 edges, got %d", len(fg.Edges))
	}
}

func TestBuildFullFlowGraphEntryExit(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}

	if got := fg.EntryIndex(); got != 0 {
		t.Errorf("entry instruction %d, want 0", got)
	}
	if exits := fg.ExitIndices(); len(exits) != 1 || exits[0] != 8 {
		t.Errorf("exit instructions %v, want [8]", exits)
	}
	if fg.Instructions[8].Text != "ret i32 %13" {
		t.Errorf("exit instruction text %q", fg.Instructions[8].Text)
	}
}

func TestBuildFullFlowGraphStripBranchLabels(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{StripBranchLabels: true})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}

	// The conditional branch keeps only its condition component.
	if fg.Instructions[2].Text != "br i1 %4" {
		t.Errorf("conditional branch text %q, want \"br i1 %%4\"", fg.Instructions[2].Text)
	}
	// Unconditional branches are unaffected by the flag.
	if fg.Instructions[4].Text != "br label %12" {
		t.Errorf("unconditional branch text %q", fg.Instructions[4].Text)
	}
}

func TestBuildFullFlowGraphKeepsBranchVerbatimByDefault(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}
	if fg.Instructions[2].Text != "br i1 %4, label %7, label %5" {
		t.Errorf("branch text %q, want the original instruction verbatim", fg.Instructions[2].Text)
	}
}

func TestBuildFullFlowGraphDropUnconditionalBranches(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{DropUnconditionalBranches: true})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}

	// Blocks %5 and %7 each lose their trailing `br label %12`.
	if len(fg.Instructions) != 7 {
		t.Fatalf("expected 7 instruction nodes, got %d", len(fg.Instructions))
	}
	for _, inst := range fg.Instructions {
		if inst.Text == "br label %12" {
			t.Errorf("unconditional branch node survived the drop: %v", inst)
		}
	}

	// The block's last retained instruction becomes the new edge source.
	has := func(src, dst int) bool {
		for _, e := range fg.Edges {
			if e.Source == src && e.Dest == dst {
				return true
			}
		}
		return false
	}
	// Layout: %2 -> 0,1,2; %5 -> 3; %7 -> 4; %12 -> 5,6.
	if !has(3, 5) || !has(4, 5) {
		t.Errorf("control edges not rewired to retained tails: %v", fg.Edges)
	}

	if err := fg.Validate(false); err != nil {
		t.Errorf("dropped-branch graph failed validation: %v", err)
	}
}

func TestBuildFullFlowGraphDropLeavesBlockEmpty(t *testing.T) {
	// A block consisting of only an unconditional branch cannot be dropped
	// without corrupting the edge rewiring.
	const src = `
digraph "CFG for 'f' function" {
  NodeA [shape=record,label="{%0:\l  br label %1\l}"];
  NodeB [shape=record,label="{%1:\l  ret void\l}"];
  NodeA -> NodeB;
}
`
	g := mustBuildCFG(t, src)

	_, err := g.BuildFullFlowGraph(ExpandOptions{DropUnconditionalBranches: true})
	if err == nil {
		t.Fatal("expected error when a block would end up empty")
	}
	var merr *MalformedControlFlowGraphError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MalformedControlFlowGraphError, got %T", err)
	}
}

func TestBuildFullFlowGraphDoesNotMutateInput(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)
	blocksBefore := len(g.Blocks)
	edgesBefore := len(g.Edges)
	textBefore := g.Blocks[0].Text

	if _, err := g.BuildFullFlowGraph(ExpandOptions{DropUnconditionalBranches: true, StripBranchLabels: true}); err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}

	if len(g.Blocks) != blocksBefore || len(g.Edges) != edgesBefore {
		t.Error("expansion mutated the source graph's shape")
	}
	if g.Blocks[0].Text != textBefore {
		t.Error("expansion mutated a source block's text")
	}
}

func TestBuildFullFlowGraphWeaklyConnected(t *testing.T) {
	g := mustBuildCFG(t, branchCFGDot)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}
	// Strict validation requires every instruction to be reachable from the
	// entry by following edge direction, which holds for this graph.
	if err := fg.Validate(true); err != nil {
		t.Errorf("expanded graph failed strict validation: %v", err)
	}
}

func TestSplitInstructions(t *testing.T) {
	got := SplitInstructions("%1 = add i32 %0, 1\n%2 = mul i32 %1, 2")
	if len(got) != 2 {
		t.Fatalf("expected 2 instructions, got %d: %v", len(got), got)
	}
}

func TestSplitInstructionsSplicesContinuations(t *testing.T) {
	// LLVM wraps long lines by prefixing the continuation with "... ".
	text := "%1 = call i32 @f(i32 %0,\n...  i32 1, i32 2)\nret i32 %1"
	got := SplitInstructions(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 instructions, got %d: %v", len(got), got)
	}
	if got[0] != "%1 = call i32 @f(i32 %0,  i32 1, i32 2)" {
		t.Errorf("spliced instruction %q", got[0])
	}
	if got[1] != "ret i32 %1" {
		t.Errorf("second instruction %q", got[1])
	}
}

func TestSplitInstructionsChainedContinuations(t *testing.T) {
	text := "call void @g(i32 1,\n... i32 2,\n... i32 3)"
	got := SplitInstructions(text)
	if len(got) != 1 {
		t.Fatalf("expected 1 instruction, got %d: %v", len(got), got)
	}
	if got[0] != "call void @g(i32 1, i32 2, i32 3)" {
		t.Errorf("spliced instruction %q", got[0])
	}
}

func TestBuildFullFlowGraphSplicesContinuationNodes(t *testing.T) {
	const src = `
digraph "CFG for 'wrapped' function" {
  NodeA [shape=record,label="{%0:\l  %1 = call i32 @f(i32 %0,\l...  i32 1)\l  ret i32 %1\l}"];
}
`
	g := mustBuildCFG(t, src)

	fg, err := g.BuildFullFlowGraph(ExpandOptions{})
	if err != nil {
		t.Fatalf("BuildFullFlowGraph() failed: %v", err)
	}
	if len(fg.Instructions) != 2 {
		t.Fatalf("expected 2 instruction nodes, got %d", len(fg.Instructions))
	}
	if fg.Instructions[0].Text != "%1 = call i32 @f(i32 %0,  i32 1)" {
		t.Errorf("continuation not spliced: %q", fg.Instructions[0].Text)
	}
}
