// Package opt invokes the LLVM opt tool to produce dot graph descriptions
// from LLVM bytecode.
//
// Each invocation runs one opt process on one compilation unit in a private
// scratch directory, with an enforced wall-clock timeout. Processes share no
// state, so callers are free to run one invocation per unit in parallel; a
// failing unit reports a *RunError and never affects any other unit.
package opt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout bounds a single opt invocation.
const DefaultTimeout = 60 * time.Second

// RunError reports a failed opt invocation. It carries the process exit code
// and captured stderr so callers can log and skip the offending unit.
type RunError struct {
	Args       []string
	ReturnCode int
	Stderr     string
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("opt %s exited with code %d", strings.Join(e.Args, " "), e.ReturnCode)
	if e.Stderr != "" {
		msg += ": " + firstLine(e.Stderr)
	}
	return msg
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Tool runs LLVM's opt binary.
type Tool struct {
	// Path is the opt executable, looked up on PATH when not absolute.
	Path string
	// Timeout bounds each invocation; the process is killed once it elapses.
	Timeout time.Duration
}

// New returns a Tool for the given opt binary. An empty path means "opt" on
// PATH; a zero timeout means DefaultTimeout.
func New(path string, timeout time.Duration) *Tool {
	if path == "" {
		path = "opt"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tool{Path: path, Timeout: timeout}
}

// DotControlFlowGraphs runs the -dot-cfg pass over one bytecode unit and
// returns one dot source per function, in deterministic (filename) order.
func (t *Tool) DotControlFlowGraphs(ctx context.Context, bytecode string) ([]string, error) {
	cfgs, _, err := t.run(ctx, bytecode, []string{"-dot-cfg"})
	return cfgs, err
}

// DotCallGraph runs the -dot-callgraph pass over one bytecode unit and
// returns the module call graph's dot source.
func (t *Tool) DotCallGraph(ctx context.Context, bytecode string) (string, error) {
	_, cg, err := t.run(ctx, bytecode, []string{"-dot-callgraph"})
	if err != nil {
		return "", err
	}
	if cg == "" {
		return "", fmt.Errorf("opt produced no call graph dot file")
	}
	return cg, nil
}

// DotCallGraphAndControlFlowGraphs runs both graph-printing passes in a
// single opt invocation, returning the call graph dot source and one CFG dot
// source per function.
func (t *Tool) DotCallGraphAndControlFlowGraphs(ctx context.Context, bytecode string) (string, []string, error) {
	cfgs, cg, err := t.run(ctx, bytecode, []string{"-dot-callgraph", "-dot-cfg"})
	if err != nil {
		return "", nil, err
	}
	if cg == "" {
		return "", nil, fmt.Errorf("opt produced no call graph dot file")
	}
	return cg, cfgs, nil
}

// run feeds bytecode to opt on stdin inside a scratch directory, then
// collects the dot files the graph-printing passes wrote there. Files whose
// text carries a "Call graph" label are call graphs; everything else is a
// per-function CFG.
//
// The graph-printing passes moved between pass managers across LLVM
// releases: a new-pass-manager opt rejects -dot-callgraph with "unknown pass
// name". When that happens the invocation is retried once under the legacy
// pass manager.
func (t *Tool) run(ctx context.Context, bytecode string, passes []string) (cfgs []string, callgraph string, err error) {
	cfgs, callgraph, err = t.runOnce(ctx, bytecode, passes)
	var runErr *RunError
	if errors.As(err, &runErr) && strings.Contains(runErr.Stderr, "unknown pass name") {
		legacy := append([]string{"-enable-new-pm=0"}, passes...)
		return t.runOnce(ctx, bytecode, legacy)
	}
	return cfgs, callgraph, err
}

func (t *Tool) runOnce(ctx context.Context, bytecode string, passes []string) (cfgs []string, callgraph string, err error) {
	scratch, err := os.MkdirTemp("", "llvm2graph-opt-")
	if err != nil {
		return nil, "", fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	args := append([]string(nil), passes...)
	args = append(args, "-disable-output", "-")

	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Dir = scratch
	cmd.Stdin = strings.NewReader(bytecode)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, "", fmt.Errorf("opt timed out after %s: %w", t.Timeout, ctx.Err())
		}
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return nil, "", &RunError{
			Args:       args,
			ReturnCode: code,
			Stderr:     stderr.String(),
		}
	}

	paths, err := dotFiles(scratch)
	if err != nil {
		return nil, "", err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", path, err)
		}
		source := string(data)
		if strings.Contains(source, "Call graph") {
			callgraph = source
		} else {
			cfgs = append(cfgs, source)
		}
	}
	return cfgs, callgraph, nil
}

// dotFiles lists the dot files in dir, sorted by name. Depending on the LLVM
// version the CFG printer writes either ".<fn>.dot" or "cfg.<fn>.dot", so
// hidden files are included.
func dotFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scratch dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dot") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
