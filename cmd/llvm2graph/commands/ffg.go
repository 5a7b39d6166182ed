package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/pkg/cfg"
)

// ffgCmd represents the ffg command
var ffgCmd = &cobra.Command{
	Use:   "ffg <file>",
	Short: "Expand control-flow graphs to full flow graphs",
	Long: `Reconstructs the CFG of every function in the input, then expands each
basic block into its individual instructions, producing a full flow graph
with one node per instruction.

Unconditional branches can be dropped entirely, and conditional branches
can have their label operands stripped, to keep only the statements a
dataflow consumer cares about.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		graphs, err := controlFlowGraphsFromFile(cmd.Context(), conf, args[0])
		if err != nil {
			return err
		}

		function, _ := cmd.Flags().GetString("function")
		graphs, err = filterByFunction(graphs, function)
		if err != nil {
			return err
		}

		dropBranches, _ := cmd.Flags().GetBool("drop-unconditional-branches")
		stripLabels, _ := cmd.Flags().GetBool("strip-branch-labels")
		opts := cfg.ExpandOptions{
			DropUnconditionalBranches: dropBranches,
			StripBranchLabels:         stripLabels,
		}

		flowGraphs := make([]*cfg.FullFlowGraph, 0, len(graphs))
		for _, graph := range graphs {
			fg, err := graph.BuildFullFlowGraph(opts)
			if err != nil {
				return fmt.Errorf("expanding %q: %w", graph.Name, err)
			}
			flowGraphs = append(flowGraphs, fg)
		}

		strict, _ := cmd.Flags().GetBool("strict")
		if strict || conf.StrictValidation {
			for _, fg := range flowGraphs {
				if err := fg.Validate(true); err != nil {
					return fmt.Errorf("validating %q: %w", fg.Name, err)
				}
			}
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(flowGraphs, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for i, fg := range flowGraphs {
			if i > 0 {
				fmt.Println()
			}
			printFullFlowGraph(fg)
		}
		return nil
	},
}

// printFullFlowGraph prints full flow graph information in human-readable format.
func printFullFlowGraph(fg *cfg.FullFlowGraph) {
	fmt.Printf("=== Full flow graph for function: %s ===\n", fg.Name)
	fmt.Printf("Entry Instruction: %d\n", fg.EntryIndex())
	fmt.Printf("Exit Instructions: %v\n", fg.ExitIndices())

	fmt.Printf("\nInstructions (%d):\n", len(fg.Instructions))
	for _, inst := range fg.Instructions {
		marker := ""
		if inst.IsEntry {
			marker += " (entry)"
		}
		if inst.IsExit {
			marker += " (exit)"
		}
		fmt.Printf("  [%d] %s%s  %s\n", inst.Index, inst.Name, marker, inst.Text)
	}

	fmt.Printf("\nEdges (%d):\n", len(fg.Edges))
	for _, edge := range fg.Edges {
		fmt.Printf("  %d -> %d\n", edge.Source, edge.Dest)
	}
}

func init() {
	ffgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	ffgCmd.Flags().StringP("function", "f", "", "Only output the named function")
	ffgCmd.Flags().Bool("drop-unconditional-branches", false, "Omit unconditional br instructions")
	ffgCmd.Flags().Bool("strip-branch-labels", false, "Strip label operands from conditional branches")
	ffgCmd.Flags().Bool("strict", false, "Require directed reachability from the entry instruction")
	RootCmd.AddCommand(ffgCmd)
}
