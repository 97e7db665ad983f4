package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/genesis/market"
)

// Gateway is the capability the bridge needs from a trading terminal.
type Gateway interface {
	Symbol(ctx context.Context, symbol string) (market.SymbolInfo, error)
	Tick(ctx context.Context, symbol string) (market.Tick, error)
	Account(ctx context.Context) (Account, error)
	Positions(ctx context.Context) ([]Position, error)
	Deals(ctx context.Context, from, to time.Time) ([]Deal, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, ticket uint64) error
	ModifyPosition(ctx context.Context, ticket uint64, sl, tp float64) error
}

type Account struct {
	Login      string  `json:"login"`
	Currency   string  `json:"currency"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Leverage   int     `json:"leverage"`
}

type Position struct {
	Ticket     uint64      `json:"ticket"`
	Symbol     string      `json:"symbol"`
	Side       market.Side `json:"side"`
	Volume     float64     `json:"volume"`
	OpenPrice  float64     `json:"open_price"`
	StopLoss   float64     `json:"sl"`
	TakeProfit float64     `json:"tp"`
	OpenTime   time.Time   `json:"open_time"`
	Profit     float64     `json:"profit"`
	Comment    string      `json:"comment,omitempty"`
}

// DealEntry tags a history fill as opening or closing a position.
type DealEntry string

const (
	EntryIn    DealEntry = "IN"
	EntryOut   DealEntry = "OUT"
	EntryInOut DealEntry = "INOUT"
)

// Deal is an immutable fill from broker history. Type is the direction of
// the fill itself, so an exit deal carries the opposite side of its position.
type Deal struct {
	Ticket     uint64      `json:"ticket"`
	PositionID uint64      `json:"position_id"`
	Symbol     string      `json:"symbol"`
	Type       market.Side `json:"type"`
	Entry      DealEntry   `json:"entry"`
	Volume     float64     `json:"volume"`
	Price      float64     `json:"price"`
	Profit     float64     `json:"profit"`
	Commission float64     `json:"commission"`
	Swap       float64     `json:"swap"`
	Time       time.Time   `json:"time"`
}

type OrderType string

const (
	OrderBuy       OrderType = "BUY"
	OrderSell      OrderType = "SELL"
	OrderBuyLimit  OrderType = "BUY_LIMIT"
	OrderSellLimit OrderType = "SELL_LIMIT"
	OrderBuyStop   OrderType = "BUY_STOP"
	OrderSellStop  OrderType = "SELL_STOP"
)

// Pending reports whether the order rests on the book instead of filling now.
func (t OrderType) Pending() bool {
	switch t {
	case OrderBuyLimit, OrderSellLimit, OrderBuyStop, OrderSellStop:
		return true
	}
	return false
}

func (t OrderType) Side() market.Side {
	switch t {
	case OrderSell, OrderSellLimit, OrderSellStop:
		return market.Sell
	}
	return market.Buy
}

type OrderRequest struct {
	Symbol     string    `json:"symbol"`
	Type       OrderType `json:"type"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price,omitempty"` // trigger price for pending orders
	StopLoss   float64   `json:"sl,omitempty"`
	TakeProfit float64   `json:"tp,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Magic      int64     `json:"magic,omitempty"`
}

type OrderResult struct {
	Ticket uint64  `json:"ticket"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// NoChange is passed to ModifyPosition for a level that must stay as is.
const NoChange float64 = -1
