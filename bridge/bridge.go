// Package bridge wires the pollers, the dispatcher and the reconciliation
// engine to a broker gateway and the GENESIS backend, and runs them as
// independent scheduled tasks.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/command"
	"github.com/rustyeddy/genesis/dispatch"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/internal/logging"
	"github.com/rustyeddy/genesis/journal"
	"github.com/rustyeddy/genesis/market"
	"github.com/rustyeddy/genesis/pkg/id"
	"github.com/rustyeddy/genesis/reconcile"
	"github.com/rustyeddy/genesis/risk"
	"github.com/rustyeddy/genesis/signal"
	"github.com/rustyeddy/genesis/state"
)

// Backend is everything the bridge needs from the GENESIS backend;
// *genesis.Client satisfies it.
type Backend interface {
	signal.Source
	dispatch.Reporter
	reconcile.Reporter
	command.Queue
	Heartbeat(ctx context.Context, hb genesis.Heartbeat) (genesis.HeartbeatAck, error)
	AccountStatus(ctx context.Context, st genesis.AccountStatus) error
}

// Intervals between task runs. Zero disables a task.
type Intervals struct {
	Signals   time.Duration
	Trades    time.Duration
	Commands  time.Duration
	Heartbeat time.Duration
	Account   time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		Signals:   5 * time.Second,
		Trades:    30 * time.Second,
		Commands:  5 * time.Second,
		Heartbeat: 60 * time.Second,
		Account:   60 * time.Second,
	}
}

type Config struct {
	AccountID      string
	TerminalPrefix string
	Symbols        []string
	Intervals      Intervals
	TaskTimeout    time.Duration
	Sessions       market.Sessions
	Risk           risk.Policy
	Magic          int64
	Lookback       time.Duration
	LedgerCapacity int
	OpenPolicy     reconcile.OpenPolicy
}

type Deps struct {
	Store   state.Store
	Journal journal.Journal
	Log     zerolog.Logger
	// Now overrides the wall clock for session checks and deal lookback.
	Now func() time.Time
}

type Bridge struct {
	cfg        Config
	gw         broker.Gateway
	backend    Backend
	terminalID string
	started    time.Time
	now        func() time.Time
	log        zerolog.Logger

	Signals    *signal.Poller
	Dispatcher *dispatch.Dispatcher
	Trades     *reconcile.Engine
	Commands   *command.Poller
}

func New(cfg Config, gw broker.Gateway, be Backend, deps Deps) *Bridge {
	if deps.Store == nil {
		deps.Store = state.NewMemory()
	}
	if deps.Journal == nil {
		deps.Journal = journal.Discard{}
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := deps.Log

	disp := dispatch.New(dispatch.Config{
		AccountID: cfg.AccountID,
		Sessions:  cfg.Sessions,
		Risk:      cfg.Risk,
		Magic:     cfg.Magic,
	}, gw, be,
		dispatch.WithJournal(deps.Journal),
		dispatch.WithLogger(logging.Component(log, "dispatch")),
		dispatch.WithClock(deps.Now),
	)

	start := deps.Now().UTC()
	return &Bridge{
		cfg:        cfg,
		gw:         gw,
		backend:    be,
		terminalID: id.Terminal(cfg.TerminalPrefix, start),
		started:    start,
		now:        deps.Now,
		log:        logging.Component(log, "bridge"),
		Dispatcher: disp,
		Signals: signal.NewPoller(signal.Config{
			AccountID: cfg.AccountID,
			Symbols:   cfg.Symbols,
		}, be, disp, deps.Store, logging.Component(log, "signals")),
		Trades: reconcile.NewEngine(reconcile.Config{
			AccountID:      cfg.AccountID,
			Lookback:       cfg.Lookback,
			LedgerCapacity: cfg.LedgerCapacity,
			OpenPolicy:     cfg.OpenPolicy,
		}, gw, be,
			reconcile.WithStore(deps.Store),
			reconcile.WithJournal(deps.Journal),
			reconcile.WithLogger(logging.Component(log, "trades")),
			reconcile.WithClock(deps.Now),
		),
		Commands: command.NewPoller(cfg.AccountID, be, gw, logging.Component(log, "commands")),
	}
}

func (b *Bridge) TerminalID() string { return b.terminalID }

// Scheduler builds the task set for the configured intervals.
func (b *Bridge) Scheduler() *Scheduler {
	iv := b.cfg.Intervals
	to := b.cfg.TaskTimeout

	s := NewScheduler(b.log)
	s.Add(Task{Name: "signals", Interval: iv.Signals, Timeout: to, Run: func(ctx context.Context) error {
		_, err := b.Signals.Poll(ctx)
		return err
	}})
	s.Add(Task{Name: "trades", Interval: iv.Trades, Timeout: to, Run: func(ctx context.Context) error {
		_, err := b.Trades.Cycle(ctx)
		return err
	}})
	s.Add(Task{Name: "commands", Interval: iv.Commands, Timeout: to, Run: func(ctx context.Context) error {
		_, err := b.Commands.Poll(ctx)
		return err
	}})
	s.Add(Task{Name: "heartbeat", Interval: iv.Heartbeat, Timeout: to, Run: b.Heartbeat})
	s.Add(Task{Name: "account", Interval: iv.Account, Timeout: to, Run: b.ReportAccount})
	return s
}

// Load restores the signal cursor and reported-trade ledger.
func (b *Bridge) Load(ctx context.Context) error {
	if err := b.Signals.Load(ctx); err != nil {
		return err
	}
	return b.Trades.Load(ctx)
}

// Run loads state and runs every task until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Load(ctx); err != nil {
		return err
	}
	b.started = b.now().UTC()
	b.log.Info().
		Str("account", b.cfg.AccountID).
		Str("terminal", b.terminalID).
		Int64("cursor", b.Signals.Cursor()).
		Strs("symbols", b.cfg.Symbols).
		Msg("bridge started")

	b.Scheduler().Run(ctx)

	b.log.Info().Msg("bridge stopped")
	return nil
}

func (b *Bridge) Heartbeat(ctx context.Context) error {
	ack, err := b.backend.Heartbeat(ctx, genesis.Heartbeat{
		AccountID:      b.cfg.AccountID,
		TerminalID:     b.terminalID,
		ConnectionTime: b.started,
	})
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if ack.ServerTime != nil {
		b.log.Debug().Dur("skew", time.Since(*ack.ServerTime)).Msg("heartbeat")
	}
	return nil
}

func (b *Bridge) ReportAccount(ctx context.Context) error {
	acct, err := b.gw.Account(ctx)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	positions, err := b.gw.Positions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	err = b.backend.AccountStatus(ctx, genesis.AccountStatus{
		AccountID:     b.cfg.AccountID,
		Balance:       acct.Balance,
		Equity:        acct.Equity,
		Margin:        acct.Margin,
		FreeMargin:    acct.FreeMargin,
		Leverage:      acct.Leverage,
		OpenPositions: len(positions),
	})
	if err != nil {
		return fmt.Errorf("account status: %w", err)
	}
	return nil
}
