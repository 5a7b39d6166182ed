// Package main implements the llvm2graph CLI.
// It provides commands for reconstructing control-flow graphs, full flow
// graphs, and call graphs from LLVM bytecode or opt dot output.
package main

import (
	"os"

	"github.com/l3aro/llvm2graph/cmd/llvm2graph/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Version = version
	commands.RootCmd.SetVersionTemplate(`llvm2graph version {{.Version}}
`)

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
