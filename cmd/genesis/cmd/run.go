package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/genesis/bridge"
	"github.com/rustyeddy/genesis/config"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge from a config file",
	Long: `Run the signal bridge using settings from a configuration file.

Tokens are read from GENESIS_TOKEN and GENESIS_TERMINAL_TOKEN (a .env file
in the working directory is loaded first). The bridge runs until interrupted.

Example:
  genesis run -f genesis.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer store.Close()

	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, eng := openGateway(cfg)
	if eng != nil {
		if err := seedPaperPrices(eng, cfg.Account.Symbols, time.Now()); err != nil {
			return fmt.Errorf("paper prices: %w", err)
		}
		go walkPrices(ctx, eng, cfg.Account.Symbols, time.Second, rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
	}

	b := bridge.New(cfg.BridgeConfig(), gw, genesis.NewClient(cfg.ClientOptions()), bridge.Deps{
		Store:   store,
		Journal: j,
		Log:     log,
	})
	log.Info().
		Str("backend", cfg.Backend.URL).
		Str("terminal", cfg.Terminal.Kind).
		Str("market", cfg.Sessions.StatusString(time.Now())).
		Msg("starting")
	return b.Run(ctx)
}
