package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/internal/config"
	"github.com/l3aro/llvm2graph/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the toolchain and cache setup",
	Long: `Checks the configuration, verifies that the opt binary is present and
executable, and that the graph cache directory is writable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfigWithPath()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		result, err := healthcheck.Check(cfg, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed: one or more components are not usable")
		}
		return nil
	},
}

// loadConfigWithPath loads the effective config and reports which file it
// came from. Built-in defaults apply when no config file exists.
func loadConfigWithPath() (*config.Config, string, error) {
	effectivePath := ""
	if fileExists(config.ProjectConfigPath()) {
		effectivePath = config.ProjectConfigPath()
	} else if fileExists(config.GlobalConfigPath()) {
		effectivePath = config.GlobalConfigPath()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	return cfg, effectivePath, nil
}

func displayDoctorResult(result *healthcheck.Result) {
	if result.EffectivePath != "" {
		fmt.Printf("Using config: %s (%s)\n\n", result.EffectivePath, result.EffectiveScope)
	} else {
		fmt.Printf("Using built-in defaults (run 'llvm2graph init' to create a config)\n\n")
	}

	fmt.Println("Toolchain:")
	if result.Opt.Path != "" {
		fmt.Printf("  opt: %s\n", result.Opt.Path)
	}
	if result.Opt.Version != "" {
		fmt.Printf("  Version: %s\n", result.Opt.Version)
	}
	printComponentStatus(result.Opt.Status, result.Opt.Error)

	fmt.Println("\nGraph cache:")
	fmt.Printf("  Directory: %s\n", result.Cache.Dir)
	printComponentStatus(result.Cache.Status, result.Cache.Error)
}

func printComponentStatus(status string, errMsg string) {
	fmt.Printf("  Status: %s %s\n", formatStatusIcon(status), status)
	if errMsg != "" && status == "error" {
		fmt.Printf("  Error: %s\n", errMsg)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case "ready":
		return "✓"
	case "error":
		return "✗"
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
