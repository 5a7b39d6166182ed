package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/internal/config"
	"github.com/l3aro/llvm2graph/internal/log"
	"github.com/l3aro/llvm2graph/pkg/cache"
	"github.com/l3aro/llvm2graph/pkg/cfg"
	"github.com/l3aro/llvm2graph/pkg/pipeline"
)

const cacheFileName = "graphs.msgpack"

// batchFileResult is the JSON shape of one input file in the batch summary.
type batchFileResult struct {
	File      string   `json:"file"`
	Functions []string `json:"functions,omitempty"`
	Cached    bool     `json:"cached,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file|dir>...",
	Short: "Reconstruct control-flow graphs for a corpus of bytecode files",
	Long: `Processes many LLVM bytecode files in parallel, one opt process per file.
Directory arguments are walked for .ll and .bc files. A failing file is
reported and skipped; it never aborts the batch.

Results are cached on disk keyed by bytecode content, so reprocessing
unchanged files skips the toolchain entirely. With --output, one JSON
file per function is written to the given directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no bytecode files found under %v", args)
		}

		workers, _ := cmd.Flags().GetInt("workers")
		if workers == 0 {
			workers = conf.Workers
		}
		noCache, _ := cmd.Flags().GetBool("no-cache")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		return runBatch(cmd, conf, files, workers, noCache, jsonOutput)
	},
}

// expandInputs resolves command arguments to bytecode files, walking
// directory arguments for .ll and .bc entries.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if ext := filepath.Ext(path); ext == ".ll" || ext == ".bc" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return files, nil
}

func runBatch(cmd *cobra.Command, conf *config.Config, files []string, workers int, noCache, jsonOutput bool) error {
	logger := log.Default()

	var graphCache *cache.GraphCache
	cachePath := ""
	if !noCache && conf.CacheDir != "" {
		graphCache = cache.New(cache.Options{
			MaxEntries: conf.CacheEntries,
			MaxBytes:   int64(conf.CacheMaxMB) * 1024 * 1024,
		})
		cachePath = filepath.Join(conf.CacheDir, cacheFileName)
		if err := cache.LoadFromFile(graphCache, cachePath); err != nil {
			logger.Warn("ignoring unreadable cache file", "path", cachePath, "error", err)
		}
	}

	results := make([]batchFileResult, len(files))
	perFileGraphs := make([][]*cfg.ControlFlowGraph, len(files))

	// Resolve what we can from the cache, collect the rest for opt.
	var (
		missIndices   []int
		missBytecodes []string
	)
	for i, file := range files {
		results[i].File = file

		bytecode, err := readInput(file)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}

		if graphCache != nil {
			key := cache.Key(bytecode)
			graphs, err := graphCache.GetControlFlowGraphs(key)
			switch {
			case err == nil:
				perFileGraphs[i] = graphs
				results[i].Cached = true
				continue
			case errors.Is(err, cache.ErrKeyNotFound):
				// miss, run opt below
			default:
				logger.Warn("dropping corrupt cache entry", "file", file, "error", err)
				graphCache.Delete(key)
			}
		}

		missIndices = append(missIndices, i)
		missBytecodes = append(missBytecodes, bytecode)
	}

	if len(missBytecodes) > 0 {
		pipelineOpts := pipeline.Options{Workers: workers}

		var spinner *log.ProgressSpinner
		if !jsonOutput {
			spinner = log.NewProgressSpinner(fmt.Sprintf("Processing %d bytecode files...", len(missBytecodes)))
			spinner.Start()
			pipelineOpts.OnUnitDone = func(done, total int) {
				spinner.Message(fmt.Sprintf("Processing bytecode files... %d/%d", done, total))
			}
		}

		tool := newTool(conf)
		unitResults, err := pipeline.ResultsFromBytecodes(cmd.Context(), tool, missBytecodes, pipelineOpts)
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return fmt.Errorf("batch aborted: %w", err)
		}

		for j, unit := range unitResults {
			i := missIndices[j]
			perFileGraphs[i] = unit.Graphs
			if unit.Err != nil {
				results[i].Error = unit.Err.Error()
				continue
			}
			if graphCache != nil {
				key := cache.Key(missBytecodes[j])
				if err := graphCache.PutControlFlowGraphs(key, unit.Graphs); err != nil {
					logger.Warn("not caching file", "file", files[i], "error", err)
				}
			}
		}
	}

	failures := 0
	for i := range results {
		for _, graph := range perFileGraphs[i] {
			results[i].Functions = append(results[i].Functions, graph.Name)
		}
		if results[i].Error != "" {
			failures++
			logger.Warn("file failed", "file", results[i].File, "error", results[i].Error)
		}
	}

	if outputDir, _ := cmd.Flags().GetString("output"); outputDir != "" {
		if err := writeGraphFiles(outputDir, perFileGraphs); err != nil {
			return err
		}
	}

	if graphCache != nil && cachePath != "" {
		if err := os.MkdirAll(conf.CacheDir, 0755); err != nil {
			logger.Warn("cannot create cache directory", "dir", conf.CacheDir, "error", err)
		} else if err := cache.PersistToFile(graphCache, cachePath); err != nil {
			logger.Warn("cannot persist cache", "path", cachePath, "error", err)
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printBatchSummary(results)
	}

	if failures == len(files) {
		return fmt.Errorf("all %d files failed", failures)
	}
	return nil
}

// writeGraphFiles writes one JSON file per function into dir. Duplicate
// function names across units get a numeric suffix.
func writeGraphFiles(dir string, perFileGraphs [][]*cfg.ControlFlowGraph) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	seen := make(map[string]int)
	for _, graphs := range perFileGraphs {
		for _, graph := range graphs {
			name := graph.Name
			if n := seen[graph.Name]; n > 0 {
				name = fmt.Sprintf("%s.%d", graph.Name, n)
			}
			seen[graph.Name]++

			data, err := json.MarshalIndent(graph, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling %q: %w", graph.Name, err)
			}
			path := filepath.Join(dir, name+".json")
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
		}
	}
	return nil
}

// printBatchSummary prints a one-line-per-file batch summary.
func printBatchSummary(results []batchFileResult) {
	ok := 0
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Printf("✗ %s: %s\n", r.File, r.Error)
		case r.Cached:
			fmt.Printf("✓ %s: %d functions (cached)\n", r.File, len(r.Functions))
			ok++
		default:
			fmt.Printf("✓ %s: %d functions\n", r.File, len(r.Functions))
			ok++
		}
	}
	fmt.Printf("\n%d/%d files processed\n", ok, len(results))
}

func init() {
	batchCmd.Flags().IntP("workers", "w", 0, "Concurrent opt processes (0 = one per CPU)")
	batchCmd.Flags().StringP("output", "o", "", "Directory to write one JSON file per function")
	batchCmd.Flags().Bool("no-cache", false, "Bypass the on-disk graph cache")
	batchCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(batchCmd)
}
