package commands

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/llvm2graph/internal/config"
	"github.com/l3aro/llvm2graph/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize llvm2graph configuration interactively",
	Long: `Guides you through setting up llvm2graph configuration step by step.
Creates a config file with toolchain, batch, and cache settings, then
runs a health check against the result.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Toolchain ===
	optPath := ""
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Path to the opt binary").
				Description("Leave empty to look up \"opt\" on PATH").
				Placeholder("/usr/lib/llvm-10/bin/opt").
				Value(&optPath),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.OptPath = optPath

	timeout := strconv.Itoa(cfg.TimeoutSeconds)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Timeout per opt invocation (seconds)").
				Placeholder("60").
				Validate(validatePositiveInt).
				Value(&timeout),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.TimeoutSeconds, _ = strconv.Atoi(timeout)

	// === SECTION 2: Batch processing ===
	workers := strconv.Itoa(cfg.Workers)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Concurrent opt processes in batch runs").
				Description("0 means one per CPU").
				Placeholder("0").
				Validate(validateNonNegativeInt).
				Value(&workers),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Workers, _ = strconv.Atoi(workers)

	var strict bool
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Strict validation").
				Description("Require every block to be reachable from the entry along directed edges?").
				Affirmative("Yes, strict").
				Negative("No, connected is enough").
				Value(&strict),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.StrictValidation = strict

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where should the config file live?").
				Options(
					huh.NewOption(fmt.Sprintf("Project (%s)", config.ProjectConfigPath()), "project"),
					huh.NewOption(fmt.Sprintf("Global (%s)", config.GlobalConfigPath()), "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	savePath := config.ProjectConfigPath()
	if saveLocationChoice == "global" {
		savePath = config.GlobalConfigPath()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Save(savePath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n\n", savePath)

	result, err := healthcheck.Check(cfg, savePath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	displayDoctorResult(result)

	if !result.Healthy() {
		fmt.Println("\nSome checks failed; fix them and re-run 'llvm2graph doctor'.")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter a non-negative number")
	}
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
