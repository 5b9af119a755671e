package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trainer/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for training sessions.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trainer config init -o trainer.yaml
  trainer config validate -f trainer.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  trainer config init -o trainer.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded. TRAINER_*
environment overrides are applied before validation.

Example:
  trainer config validate -f trainer.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trainer.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  trainer run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	start := cfg.Account.StartPhase
	if start == "" {
		start = "first phase"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Account: %s x%d (stop %.2f, target %.2f), starting at %s\n",
		cfg.Account.Contract, cfg.Account.LotSize, cfg.Account.StopOffset, cfg.Account.TargetOffset, start)
	fmt.Fprintf(out, "  Feed: start %.2f, step %.2f, every %s\n",
		cfg.Simulation.StartPrice, cfg.Simulation.Step, cfg.Simulation.TickInterval)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	if len(cfg.Phases) > 0 {
		fmt.Fprintf(out, "  Phases: %d custom\n", len(cfg.Phases))
	}
	return nil
}
