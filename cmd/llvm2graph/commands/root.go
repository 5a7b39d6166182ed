package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "llvm2graph",
	Short: "llvm2graph - Typed program graphs from LLVM bytecode",
	Long: `llvm2graph reconstructs typed program graphs from LLVM bytecode by
driving opt's dot printers and parsing their output.

Commands:
  cfg        Reconstruct control-flow graphs (one node per basic block)
  ffg        Expand control-flow graphs to full flow graphs (one node per instruction)
  callgraph  Reconstruct the module call graph
  batch      Process many bytecode files in parallel
  init       Create a configuration file interactively
  doctor     Check the toolchain and cache setup

Inputs may be LLVM bytecode (.ll) or dot files already produced by
opt -dot-cfg / opt -dot-callgraph.

Use "llvm2graph [command] --help" for more information about a command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		logger := log.Default()
		if verbose {
			logger.SetLevel(log.DebugLevel)
		}
		if jsonLogs {
			logger.SetJSONOutput(true)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file (overrides the search path)")
	RootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	RootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON lines")
}
