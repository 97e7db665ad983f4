// Package paper is an in-memory broker. It fills market orders at the
// current bid/ask, rests pending orders until price reaches them, closes
// positions on stop loss or take profit and keeps an MT5-style deal history.
package paper

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/market"
)

const firstTicket = 100001

type Engine struct {
	mu        sync.Mutex
	acct      broker.Account
	ticks     *market.TickStore
	symbols   map[string]market.SymbolInfo
	positions map[uint64]*position
	orders    map[uint64]*order
	deals     []broker.Deal
	next      uint64
	now       func() time.Time
}

var _ broker.Gateway = (*Engine)(nil)

// NewEngine starts a paper account. A nil symbols map uses market.Symbols.
// The map is copied; tick values are refreshed from each new quote.
func NewEngine(acct broker.Account, symbols map[string]market.SymbolInfo) *Engine {
	if symbols == nil {
		symbols = market.Symbols
	}
	own := make(map[string]market.SymbolInfo, len(symbols))
	for k, v := range symbols {
		own[k] = v
	}
	if acct.Leverage == 0 {
		acct.Leverage = 100
	}
	if acct.Currency == "" {
		acct.Currency = "USD"
	}
	acct.Equity = acct.Balance
	acct.FreeMargin = acct.Balance
	return &Engine{
		acct:      acct,
		ticks:     market.NewTickStore(),
		symbols:   own,
		positions: make(map[uint64]*position),
		orders:    make(map[uint64]*order),
		next:      firstTicket,
		now:       time.Now,
	}
}

// SetClock replaces the clock used for fills without a tick time.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetSymbol adds or replaces symbol metadata.
func (e *Engine) SetSymbol(info market.SymbolInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.symbols[info.Name] = info
}

func (e *Engine) Prices() *market.TickStore {
	return e.ticks
}

func (e *Engine) Symbol(_ context.Context, symbol string) (market.SymbolInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info, ok := e.symbols[symbol]
	if !ok {
		return market.SymbolInfo{}, broker.Reject(broker.RetcodeInvalid, "unknown symbol %s", symbol)
	}
	return info, nil
}

func (e *Engine) Tick(_ context.Context, symbol string) (market.Tick, error) {
	return e.ticks.Get(symbol)
}

func (e *Engine) Account(_ context.Context) (broker.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revalueLocked()
	return e.acct, nil
}

func (e *Engine) Positions(_ context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p.view(e.floatingLocked(p)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

// PendingOrders returns resting orders by ticket.
func (e *Engine) PendingOrders() map[uint64]broker.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[uint64]broker.OrderRequest, len(e.orders))
	for t, o := range e.orders {
		out[t] = o.req
	}
	return out
}

// Deals returns history with from <= time <= to, oldest first.
func (e *Engine) Deals(_ context.Context, from, to time.Time) ([]broker.Deal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []broker.Deal
	for _, d := range e.deals {
		if d.Time.Before(from) || d.Time.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (e *Engine) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	info, ok := e.symbols[req.Symbol]
	if !ok {
		return broker.OrderResult{}, broker.Reject(broker.RetcodeInvalid, "unknown symbol %s", req.Symbol)
	}
	side := req.Type.Side()
	if info.TradeMode == market.TradeDisabled {
		return broker.OrderResult{}, broker.Reject(broker.RetcodeMarketClosed, "market closed for %s", req.Symbol)
	}
	if !info.TradeMode.Allows(side) {
		return broker.OrderResult{}, broker.Reject(broker.RetcodeTradeDisabled, "%s trade mode %s", req.Symbol, info.TradeMode)
	}
	if req.Volume < info.VolumeMin || (info.VolumeMax > 0 && req.Volume > info.VolumeMax) {
		return broker.OrderResult{}, broker.Reject(broker.RetcodeInvalidVolume, "volume %.2f outside [%.2f, %.2f]", req.Volume, info.VolumeMin, info.VolumeMax)
	}

	tick, err := e.ticks.Get(req.Symbol)
	if err != nil {
		return broker.OrderResult{}, broker.Reject(broker.RetcodePriceOff, "no quote for %s", req.Symbol)
	}

	if req.Type.Pending() {
		if req.Price <= 0 || !pendingTypeValid(req.Type, req.Price, tick) {
			return broker.OrderResult{}, broker.Reject(broker.RetcodeInvalidPrice, "%s at %.5f invalid against bid %.5f ask %.5f", req.Type, req.Price, tick.Bid, tick.Ask)
		}
		if !stopsValid(side, req.Price, req.StopLoss, req.TakeProfit) {
			return broker.OrderResult{}, broker.Reject(broker.RetcodeInvalidStops, "invalid stops sl=%.5f tp=%.5f", req.StopLoss, req.TakeProfit)
		}
		t := e.ticket()
		e.orders[t] = &order{ticket: t, req: req, placed: e.timeLocked(tick)}
		return broker.OrderResult{Ticket: t, Price: req.Price, Volume: req.Volume}, nil
	}

	price := tick.PriceFor(side)
	if !stopsValid(side, price, req.StopLoss, req.TakeProfit) {
		return broker.OrderResult{}, broker.Reject(broker.RetcodeInvalidStops, "invalid stops sl=%.5f tp=%.5f", req.StopLoss, req.TakeProfit)
	}
	e.revalueLocked()
	if need := margin(req.Volume, price, info); need > e.acct.FreeMargin {
		return broker.OrderResult{}, broker.Reject(broker.RetcodeNoMoney, "margin %.2f exceeds free margin %.2f", need, e.acct.FreeMargin)
	}

	p := e.openLocked(e.ticket(), req, price, e.timeLocked(tick))
	return broker.OrderResult{Ticket: p.ticket, Price: price, Volume: p.volume}, nil
}

// ClosePosition closes an open position at market, or cancels a pending
// order with that ticket.
func (e *Engine) ClosePosition(_ context.Context, ticket uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.orders[ticket]; ok {
		delete(e.orders, ticket)
		return nil
	}
	p, ok := e.positions[ticket]
	if !ok {
		return broker.Reject(broker.RetcodePositionGone, "position %d not found", ticket)
	}
	tick, err := e.ticks.Get(p.symbol)
	if err != nil {
		return broker.Reject(broker.RetcodePriceOff, "no quote for %s", p.symbol)
	}
	e.closeLocked(p, tick.CloseFor(p.side), e.timeLocked(tick))
	e.revalueLocked()
	return nil
}

// ModifyPosition sets new stop levels. broker.NoChange keeps a level.
func (e *Engine) ModifyPosition(_ context.Context, ticket uint64, sl, tp float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[ticket]
	if !ok {
		return broker.Reject(broker.RetcodePositionGone, "position %d not found", ticket)
	}
	if sl == broker.NoChange {
		sl = p.stopLoss
	}
	if tp == broker.NoChange {
		tp = p.takeProfit
	}

	tick, err := e.ticks.Get(p.symbol)
	if err != nil {
		return broker.Reject(broker.RetcodePriceOff, "no quote for %s", p.symbol)
	}
	if !stopsValid(p.side, tick.CloseFor(p.side), sl, tp) {
		return broker.Reject(broker.RetcodeInvalidStops, "invalid stops sl=%.5f tp=%.5f", sl, tp)
	}
	p.stopLoss, p.takeProfit = sl, tp
	return nil
}

// UpdatePrice feeds a new quote: pending orders that it crosses are filled,
// then positions whose stop loss or take profit it hits are closed.
func (e *Engine) UpdatePrice(t market.Tick) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ticks.Set(t)
	if info, ok := e.symbols[t.Symbol]; ok {
		info.TickValue = market.TickValueAt(info, e.acct.Currency, t)
		e.symbols[t.Symbol] = info
	}
	at := e.timeLocked(t)

	for _, o := range e.sortedOrdersLocked() {
		if o.req.Symbol != t.Symbol || !o.triggered(t) {
			continue
		}
		delete(e.orders, o.ticket)
		e.openLocked(o.ticket, o.req, t.PriceFor(o.req.Type.Side()), at)
	}

	for _, p := range e.sortedPositionsLocked() {
		if p.symbol != t.Symbol {
			continue
		}
		mark := t.CloseFor(p.side)
		if p.exitReason(mark) != "" {
			e.closeLocked(p, mark, at)
		}
	}

	e.revalueLocked()
	return nil
}

func (e *Engine) ticket() uint64 {
	t := e.next
	e.next++
	return t
}

func (e *Engine) timeLocked(t market.Tick) time.Time {
	if !t.Time.IsZero() {
		return t.Time
	}
	return e.now()
}

func (e *Engine) openLocked(ticket uint64, req broker.OrderRequest, price float64, at time.Time) *position {
	p := &position{
		ticket:     ticket,
		symbol:     req.Symbol,
		side:       req.Type.Side(),
		volume:     req.Volume,
		openPrice:  price,
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
		openTime:   at,
		comment:    req.Comment,
	}
	e.positions[ticket] = p
	e.deals = append(e.deals, broker.Deal{
		Ticket:     e.ticket(),
		PositionID: ticket,
		Symbol:     p.symbol,
		Type:       p.side,
		Entry:      broker.EntryIn,
		Volume:     p.volume,
		Price:      price,
		Time:       at,
	})
	return p
}

func (e *Engine) closeLocked(p *position, price float64, at time.Time) {
	pl := profit(p.side, p.volume, p.openPrice, price, e.symbols[p.symbol])
	e.acct.Balance += pl
	delete(e.positions, p.ticket)
	e.deals = append(e.deals, broker.Deal{
		Ticket:     e.ticket(),
		PositionID: p.ticket,
		Symbol:     p.symbol,
		Type:       p.side.Opposite(),
		Entry:      broker.EntryOut,
		Volume:     p.volume,
		Price:      price,
		Profit:     pl,
		Time:       at,
	})
}

func (e *Engine) floatingLocked(p *position) float64 {
	tick, err := e.ticks.Get(p.symbol)
	if err != nil {
		return 0
	}
	return profit(p.side, p.volume, p.openPrice, tick.CloseFor(p.side), e.symbols[p.symbol])
}

func (e *Engine) revalueLocked() {
	equity := e.acct.Balance
	var used float64
	for _, p := range e.positions {
		equity += e.floatingLocked(p)
		if tick, err := e.ticks.Get(p.symbol); err == nil {
			used += margin(p.volume, tick.Mid(), e.symbols[p.symbol])
		}
	}
	e.acct.Equity = equity
	e.acct.Margin = used
	e.acct.FreeMargin = equity - used
}

func (e *Engine) sortedOrdersLocked() []*order {
	out := make([]*order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ticket < out[j].ticket })
	return out
}

func (e *Engine) sortedPositionsLocked() []*position {
	out := make([]*position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ticket < out[j].ticket })
	return out
}
