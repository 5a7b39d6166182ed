// Package commands provides the CLI commands for the llvm2graph tool.
package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/internal/config"
	"github.com/l3aro/llvm2graph/pkg/cfg"
	"github.com/l3aro/llvm2graph/pkg/opt"
)

// loadConfig resolves the effective configuration, honoring the global
// --config flag over the usual search path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// readInput reads an input file, rejecting directories up front.
func readInput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, expected a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

// isDotFile reports whether a path looks like opt dot output rather than
// bytecode to compile.
func isDotFile(path string) bool {
	return filepath.Ext(path) == ".dot"
}

// newTool builds an opt wrapper from the loaded configuration.
func newTool(conf *config.Config) *opt.Tool {
	return opt.New(conf.OptPath, time.Duration(conf.TimeoutSeconds)*time.Second)
}

// controlFlowGraphsFromFile reconstructs every CFG reachable from a single
// input file: a .dot file yields exactly one graph, a bytecode file yields
// one per function after an opt run.
func controlFlowGraphsFromFile(ctx context.Context, conf *config.Config, path string) ([]*cfg.ControlFlowGraph, error) {
	content, err := readInput(path)
	if err != nil {
		return nil, err
	}

	if isDotFile(path) {
		graph, err := cfg.FromDotSource(content)
		if err != nil {
			return nil, fmt.Errorf("building CFG from %s: %w", path, err)
		}
		return []*cfg.ControlFlowGraph{graph}, nil
	}

	tool := newTool(conf)
	dots, err := tool.DotControlFlowGraphs(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("running opt on %s: %w", path, err)
	}

	graphs := make([]*cfg.ControlFlowGraph, 0, len(dots))
	for _, dot := range dots {
		graph, err := cfg.FromDotSource(dot)
		if err != nil {
			return nil, fmt.Errorf("building CFG from opt output for %s: %w", path, err)
		}
		graphs = append(graphs, graph)
	}
	return graphs, nil
}

// filterByFunction narrows graphs to one named function when the filter is
// not empty.
func filterByFunction(graphs []*cfg.ControlFlowGraph, function string) ([]*cfg.ControlFlowGraph, error) {
	if function == "" {
		return graphs, nil
	}
	for _, graph := range graphs {
		if graph.Name == function {
			return []*cfg.ControlFlowGraph{graph}, nil
		}
	}

	names := make([]string, 0, len(graphs))
	for _, graph := range graphs {
		names = append(names, graph.Name)
	}
	return nil, fmt.Errorf("function %q not found; available: %v", function, names)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
