package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/pkg/cfg"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file>",
	Short: "Reconstruct control-flow graphs from LLVM bytecode or dot output",
	Long: `Reconstructs the Control Flow Graph (CFG) of every function in the input.
A .dot file produced by opt -dot-cfg yields one graph; an LLVM bytecode
file is run through opt first and yields one graph per function.
Outputs basic blocks, their instruction text, and block-level edges.`,
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

		strict, _ := cmd.Flags().GetBool("strict")
		if strict || conf.StrictValidation {
			for _, graph := range graphs {
				if err := graph.Validate(true); err != nil {
					return fmt.Errorf("validating %q: %w", graph.Name, err)
				}
			}
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(graphs, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for i, graph := range graphs {
			if i > 0 {
				fmt.Println()
			}
			printControlFlowGraph(graph)
		}
		return nil
	},
}

// printControlFlowGraph prints CFG information in human-readable format.
func printControlFlowGraph(graph *cfg.ControlFlowGraph) {
	fmt.Printf("=== CFG for function: %s ===\n", graph.Name)
	fmt.Printf("Entry Block: %d\n", graph.EntryIndex())
	fmt.Printf("Exit Blocks: %v\n", graph.ExitIndices())

	fmt.Printf("\nBlocks (%d):\n", len(graph.Blocks))
	for _, block := range graph.Blocks {
		marker := ""
		if block.IsEntry {
			marker += " (entry)"
		}
		if block.IsExit {
			marker += " (exit)"
		}
		fmt.Printf("  [%d] %s%s\n", block.Index, block.Name, marker)
		for _, line := range strings.Split(block.Text, "\n") {
			fmt.Printf("      %s\n", line)
		}
	}

	fmt.Printf("\nEdges (%d):\n", len(graph.Edges))
	for _, edge := range graph.Edges {
		fmt.Printf("  %s -> %s\n", graph.Blocks[edge.Source].Name, graph.Blocks[edge.Dest].Name)
	}
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cfgCmd.Flags().StringP("function", "f", "", "Only output the named function")
	cfgCmd.Flags().Bool("strict", false, "Require directed reachability from the entry block")
	RootCmd.AddCommand(cfgCmd)
}
