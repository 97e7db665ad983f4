package paper

import (
	"time"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/market"
)

type position struct {
	ticket     uint64
	symbol     string
	side       market.Side
	volume     float64
	openPrice  float64
	stopLoss   float64
	takeProfit float64
	openTime   time.Time
	comment    string
}

func (p *position) view(profit float64) broker.Position {
	return broker.Position{
		Ticket:     p.ticket,
		Symbol:     p.symbol,
		Side:       p.side,
		Volume:     p.volume,
		OpenPrice:  p.openPrice,
		StopLoss:   p.stopLoss,
		TakeProfit: p.takeProfit,
		OpenTime:   p.openTime,
		Profit:     profit,
		Comment:    p.comment,
	}
}

// exitReason reports whether mark hits the stop loss or take profit.
func (p *position) exitReason(mark float64) string {
	long := p.side == market.Buy
	switch {
	case p.stopLoss > 0 && ((long && mark <= p.stopLoss) || (!long && mark >= p.stopLoss)):
		return "sl"
	case p.takeProfit > 0 && ((long && mark >= p.takeProfit) || (!long && mark <= p.takeProfit)):
		return "tp"
	}
	return ""
}

// order is a resting pending order.
type order struct {
	ticket uint64
	req    broker.OrderRequest
	placed time.Time
}

// triggered reports whether the tick crosses the order's trigger price.
func (o *order) triggered(t market.Tick) bool {
	switch o.req.Type {
	case broker.OrderBuyLimit:
		return t.Ask <= o.req.Price
	case broker.OrderBuyStop:
		return t.Ask >= o.req.Price
	case broker.OrderSellLimit:
		return t.Bid >= o.req.Price
	case broker.OrderSellStop:
		return t.Bid <= o.req.Price
	}
	return false
}

// pointValue is the account-currency value of a one unit price move for
// one lot.
func pointValue(info market.SymbolInfo) float64 {
	if info.TickSize <= 0 {
		return 0
	}
	return info.TickValue / info.TickSize
}

func profit(side market.Side, volume, open, mark float64, info market.SymbolInfo) float64 {
	return side.Sign() * (mark - open) * volume * pointValue(info)
}

func margin(volume, price float64, info market.SymbolInfo) float64 {
	return volume * price * pointValue(info) * info.MarginRate
}

// pendingTypeValid checks a pending order's trigger sits on the right side
// of the market.
func pendingTypeValid(t broker.OrderType, price float64, tick market.Tick) bool {
	switch t {
	case broker.OrderBuyLimit:
		return price < tick.Ask
	case broker.OrderBuyStop:
		return price > tick.Ask
	case broker.OrderSellLimit:
		return price > tick.Bid
	case broker.OrderSellStop:
		return price < tick.Bid
	}
	return false
}

// stopsValid checks sl and tp against a reference price for side. Zero and
// negative levels are unset.
func stopsValid(side market.Side, ref, sl, tp float64) bool {
	if side == market.Buy {
		return (sl <= 0 || sl < ref) && (tp <= 0 || tp > ref)
	}
	return (sl <= 0 || sl > ref) && (tp <= 0 || tp < ref)
}
