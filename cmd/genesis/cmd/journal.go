package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/genesis/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the local trade journal",
	Long: `Query and display journal records from the SQLite database.

Subcommands:
  signal - Show every report recorded for a signal
  trade  - Get details of a closed trade by position id
  today  - List reports and trades closed today
  day    - List reports and trades closed on a specific day

Examples:
  genesis journal signal 1042
  genesis journal trade 555
  genesis journal today
  genesis journal day 2024-01-15`,
}

var journalSignalCmd = &cobra.Command{
	Use:   "signal <signal-id>",
	Short: "Show the reports recorded for a signal",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalSignal,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <position-id>",
	Short: "Get details of a closed trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List today's reports and closed trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List reports and closed trades for a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalSignalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./genesis.db", "path to SQLite journal DB")
}

func runJournalSignal(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("signal id: %w", err)
	}

	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ReportsForSignal(id)
	if err != nil {
		return fmt.Errorf("query reports: %w", err)
	}
	if len(recs) == 0 {
		fmt.Printf("no reports for signal %d\n", id)
		return nil
	}
	for _, r := range recs {
		fmt.Println(journal.FormatReportLine(r))
	}
	return nil
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

	fmt.Println(journal.FormatTradeOrg(rec))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return printJournalDay(time.Now().In(time.Local).Format("2006-01-02"))
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	return printJournalDay(args[0])
}

func printJournalDay(day string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.Local, day)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	reports, err := j.ListReportsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query reports: %w", err)
	}
	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Printf("* %s\n", day)
	for _, r := range reports {
		fmt.Println(journal.FormatReportLine(r))
	}
	fmt.Println(journal.FormatTradesOrg(trades))

	st := journal.Summarize(trades)
	fmt.Printf("Trades: %d  Wins: %d  Losses: %d  Net: %.2f\n", st.Trades, st.Wins, st.Losses, st.NetProfit)
	return nil
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
