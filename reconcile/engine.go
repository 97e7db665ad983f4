package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/journal"
	"github.com/rustyeddy/genesis/metrics"
	"github.com/rustyeddy/genesis/state"
)

const DefaultLookback = 30 * 24 * time.Hour

// Reporter receives trade snapshots.
type Reporter interface {
	UpdateTrades(ctx context.Context, upd genesis.TradeUpdate) error
}

type Config struct {
	AccountID      string
	Lookback       time.Duration
	LedgerCapacity int
	OpenPolicy     OpenPolicy
}

// Engine runs reporting cycles. Ledger keys are committed only after the
// backend accepted the snapshot, so a failed post is retried next cycle.
type Engine struct {
	cfg     Config
	gw      broker.Gateway
	rep     Reporter
	store   state.Store
	journal journal.Journal
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

type Option func(*Engine)

func WithStore(s state.Store) Option { return func(e *Engine) { e.store = s } }
func WithJournal(j journal.Journal) Option { return func(e *Engine) { e.journal = j } }
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func NewEngine(cfg Config, gw broker.Gateway, rep Reporter, opts ...Option) *Engine {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.LedgerCapacity <= 0 {
		cfg.LedgerCapacity = DefaultLedgerCapacity
	}
	if cfg.OpenPolicy == "" {
		cfg.OpenPolicy = OpenOnce
	}
	e := &Engine{
		cfg:     cfg,
		gw:      gw,
		rep:     rep,
		store:   state.NewMemory(),
		journal: journal.Discard{},
		log:     zerolog.Nop(),
		now:     time.Now,
		state:   NewState(cfg.LedgerCapacity),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load restores the ledger from the state store.
func (e *Engine) Load(ctx context.Context) error {
	keys, err := e.store.LoadLedger(ctx, e.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	e.mu.Lock()
	e.state = NewState(e.cfg.LedgerCapacity, keys...)
	e.mu.Unlock()
	metrics.LedgerSize.Set(float64(len(keys)))
	return nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cycle builds and posts one snapshot. It returns the number of records
// posted; an empty snapshot makes no backend call.
func (e *Engine) Cycle(ctx context.Context) (int, error) {
	positions, err := e.gw.Positions(ctx)
	if err != nil {
		return 0, fmt.Errorf("positions: %w", err)
	}

	now := e.now()
	deals, err := e.gw.Deals(ctx, now.Add(-e.cfg.Lookback), now)
	if err != nil {
		return 0, fmt.Errorf("deals: %w", err)
	}

	st := e.State()
	res := Reconcile(positions, deals, st, e.cfg.OpenPolicy)
	if res.Empty() {
		e.log.Debug().Int("positions", len(positions)).Int("deals", len(deals)).Msg("nothing to report")
		return 0, nil
	}

	err = e.rep.UpdateTrades(ctx, genesis.TradeUpdate{AccountID: e.cfg.AccountID, Trades: res.Trades})
	if err != nil {
		return 0, fmt.Errorf("update trades: %w", err)
	}

	metrics.TradeUpdates.Inc()
	metrics.TradeRecords.WithLabelValues(string(genesis.TradeOpen)).Add(float64(res.Open))
	metrics.TradeRecords.WithLabelValues(string(genesis.TradeClosed)).Add(float64(len(res.Closed)))

	next := st.Commit(res.Keys)
	e.mu.Lock()
	e.state = next
	e.mu.Unlock()
	metrics.LedgerSize.Set(float64(next.Ledger().Len()))

	if res.Tracked > 0 && res.Tracked >= e.cfg.LedgerCapacity*9/10 {
		e.log.Warn().
			Int("tracked", res.Tracked).
			Int("capacity", e.cfg.LedgerCapacity).
			Dur("lookback", e.cfg.Lookback).
			Msg("ledger nearly full for the lookback window, raise ledger capacity or shorten lookback")
	}

	if len(res.Keys) > 0 {
		if err := e.store.SaveLedger(ctx, e.cfg.AccountID, next.Ledger().Keys()); err != nil {
			e.log.Warn().Err(err).Msg("persist ledger")
		}
	}

	for _, c := range res.Closed {
		if err := e.journal.RecordTrade(journalTrade(c)); err != nil {
			e.log.Warn().Err(err).Uint64("position", c.PositionID).Msg("journal closed trade")
		}
	}

	e.log.Info().
		Int("open", res.Open).
		Int("closed", len(res.Closed)).
		Int("ledger", next.Ledger().Len()).
		Msg("trades reported")
	return len(res.Trades), nil
}

func journalTrade(c Closed) journal.TradeRecord {
	return journal.TradeRecord{
		PositionID: fmt.Sprint(c.PositionID),
		Symbol:     c.Symbol,
		Side:       string(c.Side),
		Volume:     c.Volume,
		EntryPrice: c.OpenPrice,
		ExitPrice:  c.ExitPrice,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		Profit:     c.Profit,
	}
}
