// Package dispatch turns signals into broker orders. Every signal handed to
// the dispatcher produces exactly one trade report, whether it was executed
// or rejected.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/journal"
	"github.com/rustyeddy/genesis/market"
	"github.com/rustyeddy/genesis/metrics"
	"github.com/rustyeddy/genesis/risk"
)

// Reporter receives trade reports.
type Reporter interface {
	TradeReport(ctx context.Context, rep genesis.TradeReport) error
}

type Config struct {
	AccountID string
	Sessions  market.Sessions
	Risk      risk.Policy
	// Magic tags orders placed by the bridge.
	Magic int64
}

type Dispatcher struct {
	cfg     Config
	gw      broker.Gateway
	rep     Reporter
	journal journal.Journal
	log     zerolog.Logger
	now     func() time.Time
}

type Option func(*Dispatcher)

func WithJournal(j journal.Journal) Option { return func(d *Dispatcher) { d.journal = j } }
func WithLogger(l zerolog.Logger) Option { return func(d *Dispatcher) { d.log = l } }
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func New(cfg Config, gw broker.Gateway, rep Reporter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:     cfg,
		gw:      gw,
		rep:     rep,
		journal: journal.Discard{},
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch executes s and reports the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, s genesis.Signal) genesis.TradeReport {
	rep := genesis.TradeReport{
		SignalID:   s.ID,
		AccountID:  d.cfg.AccountID,
		Symbol:     s.Symbol,
		Action:     s.Action,
		EntryPrice: s.EntryPrice,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit,
	}

	res, req, err := d.execute(ctx, s)
	if err != nil {
		rep.Status = genesis.StatusError
		rep.Message = err.Error()
		rep.LotSize = req.Volume
		d.log.Warn().Int64("signal", s.ID).Str("symbol", s.Symbol).Err(err).Msg("signal not executed")
	} else {
		rep.Status = genesis.StatusSuccess
		rep.Ticket = res.Ticket
		rep.LotSize = res.Volume
		rep.EntryPrice = res.Price
		rep.StopLoss = req.StopLoss
		rep.TakeProfit = req.TakeProfit
		rep.Message = fmt.Sprintf("%s order placed", req.Type)
		d.log.Info().
			Int64("signal", s.ID).
			Str("symbol", s.Symbol).
			Str("type", string(req.Type)).
			Float64("volume", res.Volume).
			Float64("price", res.Price).
			Uint64("ticket", res.Ticket).
			Msg("signal executed")
	}
	return d.send(ctx, rep)
}

// Reject reports a signal that failed validation without touching the
// broker.
func (d *Dispatcher) Reject(ctx context.Context, r genesis.RejectedSignal) genesis.TradeReport {
	return d.send(ctx, genesis.TradeReport{
		SignalID:  r.ID,
		AccountID: d.cfg.AccountID,
		Symbol:    r.Symbol,
		Action:    r.Action,
		Status:    genesis.StatusError,
		Message:   "invalid signal: " + r.Reason,
	})
}

func (d *Dispatcher) send(ctx context.Context, rep genesis.TradeReport) genesis.TradeReport {
	rep.ExecutionTime = d.now().UTC()
	metrics.Reports.WithLabelValues(rep.Status).Inc()

	if err := d.rep.TradeReport(ctx, rep); err != nil {
		d.log.Error().Err(err).Int64("signal", rep.SignalID).Msg("trade report failed")
	}
	if err := d.journal.RecordReport(journalReport(rep)); err != nil {
		d.log.Warn().Err(err).Int64("signal", rep.SignalID).Msg("journal report")
	}
	return rep
}

func (d *Dispatcher) execute(ctx context.Context, s genesis.Signal) (broker.OrderResult, broker.OrderRequest, error) {
	req := broker.OrderRequest{
		Symbol:  s.Symbol,
		Comment: fmt.Sprintf("genesis #%d", s.ID),
		Magic:   d.cfg.Magic,
	}
	side := s.Action.Side()

	info, err := d.gw.Symbol(ctx, s.Symbol)
	if err != nil {
		return broker.OrderResult{}, req, fmt.Errorf("symbol %s not tradable: %w", s.Symbol, err)
	}
	if info.TradeMode == market.TradeDisabled {
		return broker.OrderResult{}, req, fmt.Errorf("market closed: trading is disabled for %s", s.Symbol)
	}
	if !info.TradeMode.Allows(side) {
		return broker.OrderResult{}, req, fmt.Errorf("trade mode %s of %s does not allow new %s positions", info.TradeMode, s.Symbol, side)
	}
	if now := d.now(); !s.ForceExecution && !d.cfg.Sessions.IsOpen(now) {
		return broker.OrderResult{}, req, fmt.Errorf("market closed: %s", d.cfg.Sessions.StatusString(now))
	}

	tick, err := d.gw.Tick(ctx, s.Symbol)
	if err != nil {
		return broker.OrderResult{}, req, fmt.Errorf("no price for %s: %w", s.Symbol, err)
	}
	if tick.Bid <= 0 || tick.Ask <= 0 || tick.Ask < tick.Bid {
		return broker.OrderResult{}, req, fmt.Errorf("bad quote for %s: bid %.5f ask %.5f", s.Symbol, tick.Bid, tick.Ask)
	}

	req.Type, err = OrderType(s, tick)
	if err != nil {
		return broker.OrderResult{}, req, err
	}

	entry := tick.PriceFor(side)
	if req.Type.Pending() {
		entry = market.NormalizePrice(s.EntryPrice, info.Digits)
		req.Price = entry
	}
	req.StopLoss = market.NormalizePrice(s.StopLoss, info.Digits)
	req.TakeProfit = market.NormalizePrice(s.TakeProfit, info.Digits)
	if err := checkLevels(side, entry, req.StopLoss, req.TakeProfit); err != nil {
		return broker.OrderResult{}, req, err
	}

	acct, err := d.gw.Account(ctx)
	if err != nil {
		return broker.OrderResult{}, req, fmt.Errorf("account: %w", err)
	}
	req.Volume = d.size(s, info, acct, entry, req.StopLoss)

	snap := risk.AccountSnapshot{Balance: acct.Balance, Equity: acct.Equity, Margin: acct.Margin}
	if d.cfg.Risk.MaxOpenPositions > 0 {
		positions, err := d.gw.Positions(ctx)
		if err != nil {
			return broker.OrderResult{}, req, fmt.Errorf("positions: %w", err)
		}
		snap.OpenPositions = len(positions)
	}
	decision := risk.Evaluate(d.cfg.Risk, risk.TradeIntent{
		Symbol:     s.Symbol,
		Lots:       req.Volume,
		Entry:      entry,
		Stop:       req.StopLoss,
		TakeProfit: req.TakeProfit,
		TickSize:   info.TickSize,
		TickValue:  info.TickValue,
	}, snap)
	if !decision.Allowed {
		return broker.OrderResult{}, req, fmt.Errorf("risk check failed: %s", decision.Reason())
	}

	res, err := d.gw.PlaceOrder(ctx, req)
	if err != nil {
		var rej *broker.Rejection
		if errors.As(err, &rej) {
			return res, req, rej
		}
		return res, req, fmt.Errorf("order failed: %w", err)
	}
	return res, req, nil
}

// size resolves the lot size: the signal's hint when given, otherwise the
// volume that risks DefaultRiskPct of the balance at the stop, otherwise
// the symbol minimum.
func (d *Dispatcher) size(s genesis.Signal, info market.SymbolInfo, acct broker.Account, entry, stop float64) float64 {
	if s.LotSize > 0 {
		return market.NormalizeVolume(s.LotSize, info)
	}
	if stop > 0 && d.cfg.Risk.DefaultRiskPct > 0 {
		r := risk.Calculate(risk.Inputs{
			Balance:    acct.Balance,
			RiskPct:    d.cfg.Risk.DefaultRiskPct,
			EntryPrice: entry,
			StopPrice:  stop,
			TickSize:   info.TickSize,
			TickValue:  info.TickValue,
		})
		if r.Lots > 0 {
			return market.NormalizeVolume(r.Lots, info)
		}
	}
	return info.VolumeMin
}

func journalReport(r genesis.TradeReport) journal.ReportRecord {
	return journal.ReportRecord{
		SignalID:   r.SignalID,
		Symbol:     r.Symbol,
		Action:     string(r.Action),
		Ticket:     r.Ticket,
		Volume:     r.LotSize,
		Price:      r.EntryPrice,
		StopLoss:   r.StopLoss,
		TakeProfit: r.TakeProfit,
		Status:     r.Status,
		Message:    r.Message,
		Time:       r.ExecutionTime,
	}
}
