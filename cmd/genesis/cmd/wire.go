package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/broker/paper"
	"github.com/rustyeddy/genesis/broker/terminal"
	"github.com/rustyeddy/genesis/config"
	"github.com/rustyeddy/genesis/internal/logging"
	"github.com/rustyeddy/genesis/journal"
	"github.com/rustyeddy/genesis/market"
	"github.com/rustyeddy/genesis/state"
)

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format, nil)
}

func openStore(cfg *config.Config) (state.Store, error) {
	if cfg.State.Kind == "redis" {
		return state.NewRedis(state.RedisOptions{
			Addr:     cfg.State.DSN,
			Password: cfg.State.Password,
			DB:       cfg.State.DB,
			Prefix:   cfg.State.Prefix,
			TTL:      cfg.StateTTL(),
		})
	}
	return state.Open(cfg.State.Kind, cfg.State.DSN)
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	return journal.Open(cfg.Journal.Type, cfg.Journal.DBPath, cfg.Journal.TradesFile, cfg.Journal.ReportsFile)
}

// openGateway returns the configured broker. The paper engine is also
// returned so callers can feed it prices.
func openGateway(cfg *config.Config) (broker.Gateway, *paper.Engine) {
	if cfg.Terminal.Kind == "terminal" {
		return terminal.NewClient(cfg.Terminal.URL, cfg.Terminal.Token, cfg.TerminalTimeout()), nil
	}
	eng := paper.NewEngine(broker.Account{
		Login:    cfg.Account.ID,
		Currency: cfg.Terminal.Paper.Currency,
		Balance:  cfg.Terminal.Paper.Balance,
		Leverage: cfg.Terminal.Paper.Leverage,
	}, nil)
	return eng, eng
}

// seedPaperPrices gives the paper engine a quote for every configured
// symbol so market orders can fill.
func seedPaperPrices(eng *paper.Engine, symbols []string, now time.Time) error {
	for _, sym := range symbols {
		mid, ok := demoMids[sym]
		if !ok {
			return fmt.Errorf("no demo price for %s", sym)
		}
		info, err := eng.Symbol(context.Background(), sym)
		if err != nil {
			return err
		}
		half := float64(info.Spread) * info.Point / 2
		if err := eng.UpdatePrice(market.Tick{Symbol: sym, Bid: mid - half, Ask: mid + half, Time: now}); err != nil {
			return err
		}
	}
	return nil
}

var demoMids = map[string]float64{
	"EURUSD": 1.0850,
	"GBPUSD": 1.2650,
	"USDJPY": 151.200,
	"XAUUSD": 2330.00,
}

// walkPrices nudges every paper quote by a small random step until ctx ends,
// so resting orders and stops eventually trigger.
func walkPrices(ctx context.Context, eng *paper.Engine, symbols []string, every time.Duration, rng *rand.Rand) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, sym := range symbols {
				t, err := eng.Tick(ctx, sym)
				if err != nil {
					continue
				}
				info, err := eng.Symbol(ctx, sym)
				if err != nil {
					continue
				}
				step := float64(rng.Intn(41)-20) * info.Point * 5
				_ = eng.UpdatePrice(market.Tick{Symbol: sym, Bid: t.Bid + step, Ask: t.Ask + step, Time: now.UTC()})
			}
		}
	}
}
