package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trainer/challenge"
	"github.com/rustyeddy/trainer/sim"
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List the challenge ladder",
	Long: `Print every phase of the funding ladder with its target, loss limit
and lot cap. A config file with a phases section replaces the stock ladder.

Example:
  trainer phases -f trainer.yaml`,
	Args: cobra.NoArgs,
	RunE: runPhases,
}

var phasesConfigPath string

func init() {
	rootCmd.AddCommand(phasesCmd)
	phasesCmd.Flags().StringVarP(&phasesConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func runPhases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(phasesConfigPath)
	if err != nil {
		return err
	}
	table := challenge.DefaultTable()
	if len(cfg.Phases) > 0 {
		if table, err = challenge.NewTable(cfg.Phases); err != nil {
			return fmt.Errorf("phases: %w", err)
		}
	}
	printPhases(cmd.OutOrStdout(), table)
	return nil
}

func printPhases(w io.Writer, t *challenge.Table) {
	fmt.Fprintf(w, "%-14s %-6s %-5s %12s %10s %10s %6s %6s\n",
		"KEY", "LEVEL", "PHASE", "BALANCE", "TARGET", "MAX LOSS", "MINI", "MICRO")
	for _, p := range t.Phases() {
		fmt.Fprintf(w, "%-14s %-6s %-5d %12.2f %10.2f %10.2f %6d %6d\n",
			p.Key, p.Level, p.Ordinal, p.StartBalance, p.ProfitTarget, p.MaxLoss,
			p.MaxLots, p.MaxLots*sim.LotsPerMini(sim.Micro))
	}
}
