package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trainer/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display journal records from a SQLite database.

Subcommands:
  trade   - Get details of a specific trade by ID
  today   - List trades closed today
  day     - List trades closed on a specific day
  events  - List phase advances, failures and resets
  run     - Show a recorded session summary

Examples:
  trainer journal trade <trade-id>
  trainer journal today
  trainer journal day 2026-01-15
  trainer journal run <run-id>`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List challenge events",
	Args:  cobra.NoArgs,
	RunE:  runJournalEvents,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Show a recorded session summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)
	journalCmd.AddCommand(journalEventsCmd)
	journalCmd.AddCommand(journalRunCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./trainer.sqlite", "path to SQLite journal DB")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return printDay(cmd, time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return printDay(cmd, args[0])
}

func printDay(cmd *cobra.Command, day string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatDayOrg(day, recs))
	return nil
}

func runJournalEvents(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	events, err := j.ListEvents()
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		fmt.Fprintf(out, "%s  %-16s %-12s %-12s %s\n",
			e.Time.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Phase, e.Next, e.Message)
	}
	return nil
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	run, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	return run.WriteOrg(cmd.OutOrStdout())
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
