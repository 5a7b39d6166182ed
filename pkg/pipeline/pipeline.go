// Package pipeline turns batches of LLVM bytecode units into control-flow
// graphs.
//
// Each unit is processed independently: the bytecode is handed to an opt
// process, every dot CFG it produces is parsed and validated, and any
// failure is recorded against that one unit. A bad unit never aborts the
// batch; callers receive every graph that could be built plus an aggregate
// of the per-unit errors for logging and quarantine.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/llvm2graph/pkg/cfg"
	"github.com/l3aro/llvm2graph/pkg/opt"
)

// BytecodeError reports a bytecode unit the toolchain could not process.
type BytecodeError struct {
	// Bytecode is the offending input.
	Bytecode string
	Err      error
}

func (e *BytecodeError) Error() string {
	return fmt.Sprintf("processing bytecode: %v", e.Err)
}

func (e *BytecodeError) Unwrap() error { return e.Err }

// DotSourceError reports a dot source that could not be turned into a
// validated control-flow graph.
type DotSourceError struct {
	// Dot is the offending dot source.
	Dot string
	Err error
}

func (e *DotSourceError) Error() string {
	return fmt.Sprintf("processing dot source: %v", e.Err)
}

func (e *DotSourceError) Unwrap() error { return e.Err }

// ErrorList aggregates the per-unit errors of one batch.
type ErrorList struct {
	Errors []error
}

func (e *ErrorList) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d units failed; first: %v", len(e.Errors), e.Errors[0])
}

// orNil returns the list as an error, or nil when no unit failed.
func (e *ErrorList) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Options configures a batch run.
type Options struct {
	// Workers bounds the number of concurrent opt processes; zero means
	// one per CPU.
	Workers int

	// OnUnitDone, if set, is called after each unit finishes, successful or
	// not, with the number of finished units and the batch size. Calls are
	// serialized but may come from any worker goroutine.
	OnUnitDone func(done, total int)
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Result is the outcome of one bytecode unit in a batch. Err, if not nil,
// is a *BytecodeError or an *ErrorList of *DotSourceError values; Graphs
// holds whatever could still be built for the unit.
type Result struct {
	Graphs []*cfg.ControlFlowGraph
	Err    error
}

// ResultsFromBytecodes processes the given bytecode units in parallel with
// one opt process per unit and reports the outcome per unit, index-aligned
// with the input. A bad unit never aborts the batch; the returned error is
// non-nil only when the context is cancelled.
func ResultsFromBytecodes(ctx context.Context, tool *opt.Tool, bytecodes []string, opts Options) ([]Result, error) {
	results := make([]Result, len(bytecodes))
	done := 0
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for i, bytecode := range bytecodes {
		i, bytecode := i, bytecode
		g.Go(func() error {
			graphs, err := controlFlowGraphsFromBytecode(ctx, tool, bytecode)
			mu.Lock()
			defer mu.Unlock()
			results[i] = Result{Graphs: graphs, Err: err}
			done++
			if opts.OnUnitDone != nil {
				opts.OnUnitDone(done, len(bytecodes))
			}
			// Unit failures are collected, not returned: returning an error
			// here would cancel the rest of the batch.
			return nil
		})
	}
	// The only error path out of the group is context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// ControlFlowGraphsFromBytecodes builds every control-flow graph found in
// the given bytecode units, processing units in parallel with one opt
// process per unit.
//
// The returned error, if not nil, is an *ErrorList of *BytecodeError and
// *DotSourceError values; graphs from the healthy units are returned
// alongside it. Graph order follows unit order, then dot order within a
// unit.
func ControlFlowGraphsFromBytecodes(ctx context.Context, tool *opt.Tool, bytecodes []string, opts Options) ([]*cfg.ControlFlowGraph, error) {
	results, err := ResultsFromBytecodes(ctx, tool, bytecodes, opts)
	if err != nil {
		return nil, err
	}

	var (
		graphs []*cfg.ControlFlowGraph
		failed ErrorList
	)
	for _, unit := range results {
		graphs = append(graphs, unit.Graphs...)
		if errs, ok := unit.Err.(*ErrorList); ok {
			failed.Errors = append(failed.Errors, errs.Errors...)
		} else if unit.Err != nil {
			failed.Errors = append(failed.Errors, unit.Err)
		}
	}
	return graphs, failed.orNil()
}

// controlFlowGraphsFromBytecode processes a single unit: one opt run, then
// one parse per emitted dot source.
func controlFlowGraphsFromBytecode(ctx context.Context, tool *opt.Tool, bytecode string) ([]*cfg.ControlFlowGraph, error) {
	dots, err := tool.DotControlFlowGraphs(ctx, bytecode)
	if err != nil {
		return nil, &BytecodeError{Bytecode: bytecode, Err: err}
	}

	var (
		graphs []*cfg.ControlFlowGraph
		failed ErrorList
	)
	for _, dot := range dots {
		graph, err := cfg.FromDotSource(dot)
		if err != nil {
			failed.Errors = append(failed.Errors, &DotSourceError{Dot: dot, Err: err})
			continue
		}
		graphs = append(graphs, graph)
	}
	return graphs, failed.orNil()
}

// ControlFlowGraphsFromDotSources builds one graph per dot source, with the
// same error-isolation contract as ControlFlowGraphsFromBytecodes but no
// toolchain involvement.
func ControlFlowGraphsFromDotSources(dots []string) ([]*cfg.ControlFlowGraph, error) {
	var (
		graphs []*cfg.ControlFlowGraph
		failed ErrorList
	)
	for _, dot := range dots {
		graph, err := cfg.FromDotSource(dot)
		if err != nil {
			failed.Errors = append(failed.Errors, &DotSourceError{Dot: dot, Err: err})
			continue
		}
		graphs = append(graphs, graph)
	}
	return graphs, failed.orNil()
}
