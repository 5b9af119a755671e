package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "A futures funding-challenge trading trainer",
	Long: `Trainer simulates a leveraged futures account against a synthetic
price feed and walks it through a ladder of funding-challenge phases.

It provides tools for:
  - Trading micro and mini contracts with stop/target brackets
  - Phase progression from 25K to 1M with profit targets and loss limits
  - Trade, equity and event journals in CSV or SQLite
  - Org-mode trade and run reports
  - Prometheus metrics for a running session`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		logrus.SetLevel(lvl)
		return nil
	},
}

var (
	logLevel string
	envFile  string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "read TRAINER_* variables from this file (default ./.env when present)")
}
