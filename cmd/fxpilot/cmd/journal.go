package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxpilot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the bot journal",
	Long: `Query executed orders, equity snapshots and notes recorded by the bot.

Subcommands:
  orders - Export orders placed on a day (or range) as CSV
  equity - Show the latest equity snapshot
  notes  - Show the most recent notes

Examples:
  fxpilot journal orders --day 2024-01-15
  fxpilot journal notes -n 20`,
}

var journalOrdersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Export orders as CSV",
	Args:  cobra.NoArgs,
	RunE:  runJournalOrders,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Show the latest equity snapshot",
	Args:  cobra.NoArgs,
	RunE:  runJournalEquity,
}

var journalNotesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Show the most recent notes",
	Args:  cobra.NoArgs,
	RunE:  runJournalNotes,
}

var (
	journalDBPath string
	journalDay    string
	journalDays   int
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrdersCmd)
	journalCmd.AddCommand(journalEquityCmd)
	journalCmd.AddCommand(journalNotesCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./fxpilot.db", "path to SQLite journal DB")
	journalOrdersCmd.Flags().StringVar(&journalDay, "day", "", "first day to export, YYYY-MM-DD in UTC (default today)")
	journalOrdersCmd.Flags().IntVar(&journalDays, "days", 1, "number of days to export")
	journalNotesCmd.Flags().IntVarP(&journalLimit, "limit", "n", 10, "number of notes")
}

func runJournalOrders(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	day := journalDay
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}
	start, end, err := dayBounds(time.UTC, day, journalDays)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	orders, err := j.ListOrders(start, end)
	if err != nil {
		return fmt.Errorf("query orders: %w", err)
	}
	return journal.WriteOrdersCSV(cmd.OutOrStdout(), orders)
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	e, err := j.LastEquity()
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s balance=%.2f equity=%.2f pnl=%.2f open=%d\n",
		e.Time.UTC().Format(time.RFC3339), e.Balance, e.Equity, e.Profit, e.OpenPositions)
	return nil
}

func runJournalNotes(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	notes, err := j.RecentNotes(journalLimit)
	if err != nil {
		return fmt.Errorf("query notes: %w", err)
	}
	for _, n := range notes {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", n.Time.UTC().Format(time.RFC3339), n.Message)
	}
	return nil
}

func dayBounds(loc *time.Location, day string, days int) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if days < 1 {
		days = 1
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, days), nil
}
