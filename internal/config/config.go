package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for llvm2graph
type Config struct {
	// OptPath is the opt binary to invoke. Empty means look up "opt" on PATH.
	OptPath string `yaml:"opt_path" env:"L2G_OPT_PATH"`

	// TimeoutSeconds bounds each opt invocation.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"L2G_TIMEOUT_SECONDS"`

	// Workers bounds concurrent opt processes in batch runs.
	// 0 means one per CPU.
	Workers int `yaml:"workers" env:"L2G_WORKERS"`

	// Cache settings
	CacheDir     string `yaml:"cache_dir" env:"L2G_CACHE_DIR"`
	CacheEntries int    `yaml:"cache_entries" env:"L2G_CACHE_ENTRIES"`
	CacheMaxMB   int    `yaml:"cache_max_mb" env:"L2G_CACHE_MAX_MB"`

	// StrictValidation requires every node to be reachable from the entry
	// along directed edges, not merely connected.
	StrictValidation bool `yaml:"strict_validation" env:"L2G_STRICT_VALIDATION"`

	// Logging
	Verbose  bool `yaml:"verbose" env:"L2G_VERBOSE"`
	JSONLogs bool `yaml:"json_logs" env:"L2G_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OptPath:          "",
		TimeoutSeconds:   60,
		Workers:          0,
		CacheDir:         defaultCacheDir(),
		CacheEntries:     1024,
		CacheMaxMB:       256,
		StrictValidation: false,
		Verbose:          false,
		JSONLogs:         false,
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".llvm2graph/cache"
	}
	return filepath.Join(home, ".llvm2graph", "cache")
}

// globalConfigFilePath returns the global config file path (~/.llvm2graph/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".llvm2graph/config.yaml"
	}
	return filepath.Join(home, ".llvm2graph", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.llvm2graph/config.yaml)
func projectConfigFilePath() string {
	return ".llvm2graph/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.llvm2graph/config.yaml)
// 3. Global config (~/.llvm2graph/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	globalConfigPath := globalConfigFilePath()
	if data, err := os.ReadFile(globalConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", globalConfigPath, err)
		}
	}

	projectConfigPath := projectConfigFilePath()
	if data, err := os.ReadFile(projectConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", projectConfigPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// ProjectConfigPath returns where Save should write a project-level config.
func ProjectConfigPath() string {
	return projectConfigFilePath()
}

// GlobalConfigPath returns where Save should write a global config.
func GlobalConfigPath() string {
	return globalConfigFilePath()
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("L2G_OPT_PATH"); v != "" {
		cfg.OptPath = v
	}
	if v := os.Getenv("L2G_TIMEOUT_SECONDS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.TimeoutSeconds = i
		}
	}
	if v := os.Getenv("L2G_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("L2G_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("L2G_CACHE_ENTRIES"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheEntries = i
		}
	}
	if v := os.Getenv("L2G_CACHE_MAX_MB"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.CacheMaxMB = i
		}
	}
	if v := os.Getenv("L2G_STRICT_VALIDATION"); v != "" {
		cfg.StrictValidation = isTruthy(v)
	}
	if v := os.Getenv("L2G_VERBOSE"); v != "" {
		cfg.Verbose = isTruthy(v)
	}
	if v := os.Getenv("L2G_JSON_LOGS"); v != "" {
		cfg.JSONLogs = isTruthy(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.CacheEntries < 0 {
		return fmt.Errorf("cache_entries must be non-negative")
	}
	if c.CacheMaxMB < 0 {
		return fmt.Errorf("cache_max_mb must be non-negative")
	}
	return nil
}

func isTruthy(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
