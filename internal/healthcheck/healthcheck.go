package healthcheck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/llvm2graph/internal/config"
)

// ToolStatus represents the health of the opt binary.
type ToolStatus struct {
	Path    string // resolved binary path
	Version string // first line of `opt --version` output that mentions a version
	Status  string // "ready" or "error"
	Error   string
}

// CacheStatus represents the health of the on-disk graph cache location.
type CacheStatus struct {
	Dir    string
	Status string // "ready" or "error"
	Error  string
}

// Result contains the full health check output for display.
type Result struct {
	EffectivePath  string // config file actually in use (empty when defaults apply)
	EffectiveScope string // "global" or "project"
	Opt            ToolStatus
	Cache          CacheStatus
}

// Check verifies that the configured toolchain and cache directory are usable.
// effectivePath is the config file in use, or empty when running on defaults.
func Check(cfg *config.Config, effectivePath string) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &Result{
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Opt = checkOpt(cfg.OptPath)
	result.Cache = checkCacheDir(cfg.CacheDir)

	return result, nil
}

// Healthy reports whether every checked component is ready.
func (r *Result) Healthy() bool {
	return r.Opt.Status == "ready" && r.Cache.Status == "ready"
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".llvm2graph")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkOpt resolves the opt binary and runs `opt --version` to confirm it
// actually executes. An empty path means look up "opt" on PATH.
func checkOpt(path string) ToolStatus {
	status := ToolStatus{}

	name := path
	if name == "" {
		name = "opt"
	}

	resolved, err := exec.LookPath(name)
	if err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("cannot find opt binary %q: %v", name, err)
		return status
	}
	status.Path = resolved

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, resolved, "--version").Output()
	if err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("running %s --version: %v", resolved, err)
		return status
	}

	status.Version = versionLine(string(out))
	status.Status = "ready"
	return status
}

// versionLine extracts the line of --version output carrying the version
// number, e.g. "LLVM version 10.0.0".
func versionLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "version") {
			return line
		}
	}
	return strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
}

// checkCacheDir verifies the cache directory exists (creating it if needed)
// and is writable.
func checkCacheDir(dir string) CacheStatus {
	status := CacheStatus{Dir: dir}

	if dir == "" {
		status.Status = "error"
		status.Error = "cache directory is not configured"
		return status
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("cannot create cache directory: %v", err)
		return status
	}

	probe, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		status.Status = "error"
		status.Error = fmt.Sprintf("cache directory is not writable: %v", err)
		return status
	}
	probe.Close()
	os.Remove(probe.Name())

	status.Status = "ready"
	return status
}
