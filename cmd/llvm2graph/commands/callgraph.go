package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/internal/log"
	"github.com/l3aro/llvm2graph/pkg/callgraph"
)

// callGraphOutput is the JSON shape of the callgraph command.
type callGraphOutput struct {
	Functions  []string            `json:"functions"`
	CallCounts map[string]int      `json:"call_counts"`
	Calls      map[string][]string `json:"calls"`
	CallSites  int                 `json:"call_sites"`
	Merged     []string            `json:"merged,omitempty"`
}

// callgraphCmd represents the callgraph command
var callgraphCmd = &cobra.Command{
	Use:   "callgraph <file>",
	Short: "Reconstruct the module call graph",
	Long: `Reconstructs the call graph of an LLVM module. A .dot file produced by
opt -dot-callgraph is parsed directly; an LLVM bytecode file is run
through opt first.

Outputs the functions of the module, their outgoing calls with
multiplicity, and the number of incoming calls per function.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readInput(args[0])
		if err != nil {
			return err
		}

		dot := content
		if !isDotFile(args[0]) {
			conf, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			tool := newTool(conf)
			dot, err = tool.DotCallGraph(cmd.Context(), content)
			if err != nil {
				return fmt.Errorf("running opt on %s: %w", args[0], err)
			}
		}

		graph, err := callgraph.FromDotSource(dot)
		if err != nil {
			return fmt.Errorf("building call graph: %w", err)
		}

		if merged := graph.MergedFunctions(); len(merged) > 0 {
			log.Default().Warn("duplicate function names merged", "functions", merged)
		}

		out := callGraphOutput{
			Functions:  graph.Functions(),
			CallCounts: graph.CallCountsByFunction(),
			Calls:      make(map[string][]string),
			CallSites:  graph.CallSiteCount(),
			Merged:     graph.MergedFunctions(),
		}
		for _, fn := range out.Functions {
			out.Calls[fn] = graph.Calls(fn)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		printCallGraph(out)
		return nil
	},
}

// printCallGraph prints call graph information in human-readable format.
func printCallGraph(out callGraphOutput) {
	fmt.Printf("=== Call graph ===\n")
	fmt.Printf("Functions: %d, call sites: %d\n", len(out.Functions), out.CallSites)

	fmt.Printf("\nFunctions:\n")
	for _, fn := range out.Functions {
		fmt.Printf("  %s (called %d times)\n", fn, out.CallCounts[fn])
		for _, callee := range out.Calls[fn] {
			fmt.Printf("    -> %s\n", callee)
		}
	}
}

func init() {
	callgraphCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(callgraphCmd)
}
