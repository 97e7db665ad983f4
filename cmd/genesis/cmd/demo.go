package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/genesis/bridge"
	"github.com/rustyeddy/genesis/config"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/journal"
	"github.com/rustyeddy/genesis/market"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the bridge against a paper broker and a local backend",
	Long: `Run the complete bridge loop without a terminal or a real backend.

An in-process GENESIS backend serves a handful of signals (including one
invalid signal) and queues a modify and a close command once orders are
placed. A paper broker fills orders while prices random-walk. At the end the
journal is printed.

Examples:
  genesis demo
  genesis demo --duration 30s --interval 500ms`,
	RunE: runDemo,
}

var (
	demoDuration time.Duration
	demoInterval time.Duration
	demoSeed     int64
	demoLogLevel string
)

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().DurationVar(&demoDuration, "duration", 15*time.Second, "how long to run")
	demoCmd.Flags().DurationVar(&demoInterval, "interval", time.Second, "period of every bridge task")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 1, "random seed for the price walk")
	demoCmd.Flags().StringVar(&demoLogLevel, "log-level", "warn", "log level")
}

// demoConfig is the default config pointed at the local backend, with every
// task on the same short interval and the market always open.
func demoConfig(backendURL, journalPath string, every time.Duration) *config.Config {
	cfg := config.Default()
	cfg.Account.ID = "demo"
	cfg.Backend.URL = backendURL
	cfg.Terminal.Kind = "paper"
	cfg.Terminal.Prefix = "demo"
	iv := every.String()
	cfg.Intervals = config.IntervalConfig{
		Signals: iv, Trades: iv, Commands: iv, Heartbeat: iv, Account: iv,
		TaskTimeout: (5 * every).String(),
	}
	cfg.Sessions = market.Sessions{CloseDay: time.Friday, CloseHour: 22, OpenDay: time.Friday, OpenHour: 22}
	cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: journalPath}
	cfg.Log = config.LogConfig{Level: demoLogLevel, Format: "console"}
	return cfg
}

func runDemo(cmd *cobra.Command, args []string) error {
	dir, err := os.MkdirTemp("", "genesis-demo-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	be := newDemoBackend()
	srv := httptest.NewServer(be)
	defer srv.Close()

	cfg := demoConfig(srv.URL, filepath.Join(dir, "journal.db"), demoInterval)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("demo config: %w", err)
	}
	log := newLogger(cfg)

	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	gw, eng := openGateway(cfg)
	start := time.Now().UTC()
	if err := seedPaperPrices(eng, cfg.Account.Symbols, start); err != nil {
		return fmt.Errorf("paper prices: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), demoDuration)
	defer cancel()
	go walkPrices(ctx, eng, cfg.Account.Symbols, demoInterval/4, rand.New(rand.NewSource(demoSeed)))

	b := bridge.New(cfg.BridgeConfig(), gw, genesis.NewClient(cfg.ClientOptions()), bridge.Deps{
		Journal: j,
		Log:     log,
	})

	fmt.Printf("Running demo for %s (terminal %s)\n", demoDuration, b.TerminalID())
	fmt.Printf("  Backend: %s\n", srv.URL)
	fmt.Printf("  Symbols: %v\n\n", cfg.Account.Symbols)

	if err := b.Run(ctx); err != nil {
		return err
	}
	// one last reconcile so trades closed in the final interval are reported
	if _, err := b.Trades.Cycle(context.Background()); err != nil {
		log.Warn().Err(err).Msg("final trade cycle")
	}

	return printDemoSummary(j, be.summary(), start, time.Now().UTC().Add(time.Minute))
}

func printDemoSummary(j *journal.SQLite, sum demoSummary, start, end time.Time) error {
	reports, err := j.ListReportsBetween(start, end)
	if err != nil {
		return fmt.Errorf("query reports: %w", err)
	}
	fmt.Println("* Trade reports")
	for _, r := range reports {
		fmt.Println(journal.FormatReportLine(r))
	}

	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	fmt.Println()
	fmt.Println("* Closed trades")
	fmt.Println(journal.FormatTradesOrg(trades))

	keys := make([]string, 0, len(sum.Trades))
	for k := range sum.Trades {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("* Backend view")
	fmt.Printf("  Reports received: %d\n", len(sum.Reports))
	fmt.Printf("  Trade updates: %d (%d trades)\n", sum.Updates, len(keys))
	for _, k := range keys {
		t := sum.Trades[k]
		fmt.Printf("    %s %s %s %.2f @ %.5f %s profit %.2f\n", k, t.Symbol, t.Side, t.Volume, t.OpenPrice, t.Status, t.Profit)
	}
	fmt.Printf("  Heartbeats: %d\n", sum.Beats)
	fmt.Printf("  Account: balance %.2f equity %.2f open positions %d\n",
		sum.Status.Balance, sum.Status.Equity, sum.Status.OpenPositions)

	st := journal.Summarize(trades)
	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Trades: %d (wins %d, losses %d)\n", st.Trades, st.Wins, st.Losses)
	fmt.Printf("  Net Profit: $%.2f\n", st.NetProfit)
	return nil
}
