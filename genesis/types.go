package genesis

import (
	"time"

	"github.com/rustyeddy/genesis/market"
)

// Action is the instruction carried by a signal.
type Action string

const (
	BuyNow           Action = "BUY_NOW"
	SellNow          Action = "SELL_NOW"
	AnticipatedLong  Action = "ANTICIPATED_LONG"
	AnticipatedShort Action = "ANTICIPATED_SHORT"
)

func (a Action) Side() market.Side {
	if a == SellNow || a == AnticipatedShort {
		return market.Sell
	}
	return market.Buy
}

func (a Action) Immediate() bool {
	return a == BuyNow || a == SellNow
}

// Signal is a trading instruction issued by the backend. Zero prices mean
// "not set".
type Signal struct {
	ID             int64   `json:"id" validate:"gt=0"`
	Symbol         string  `json:"symbol" validate:"required"`
	Action         Action  `json:"action" validate:"oneof=BUY_NOW SELL_NOW ANTICIPATED_LONG ANTICIPATED_SHORT"`
	EntryPrice     float64 `json:"entry_price" validate:"gte=0"`
	StopLoss       float64 `json:"stop_loss" validate:"gte=0"`
	TakeProfit     float64 `json:"take_profit" validate:"gte=0"`
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`
	LotSize        float64 `json:"lot_size" validate:"gte=0"`
	ForceExecution bool    `json:"force_execution"`
}

// RejectedSignal is a signal that failed the decode boundary.
type RejectedSignal struct {
	ID     int64
	Symbol string
	Action Action
	Reason string
}

type SignalBatch struct {
	Signals  []Signal
	Rejected []RejectedSignal
}

type SignalsRequest struct {
	AccountID    string   `json:"account_id"`
	LastSignalID int64    `json:"last_signal_id"`
	Symbols      []string `json:"symbols"`
}

type Heartbeat struct {
	AccountID      string    `json:"account_id"`
	TerminalID     string    `json:"terminal_id"`
	ConnectionTime time.Time `json:"connection_time"`
}

type HeartbeatAck struct {
	ServerTime *time.Time
}

type AccountStatus struct {
	AccountID     string  `json:"account_id"`
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	Margin        float64 `json:"margin"`
	FreeMargin    float64 `json:"free_margin"`
	Leverage      int     `json:"leverage"`
	OpenPositions int     `json:"open_positions"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// TradeReport is the outcome of executing one signal.
type TradeReport struct {
	SignalID      int64     `json:"signal_id"`
	AccountID     string    `json:"account_id"`
	Symbol        string    `json:"symbol"`
	Action        Action    `json:"action"`
	Ticket        uint64    `json:"ticket"`
	LotSize       float64   `json:"lot_size"`
	EntryPrice    float64   `json:"entry_price"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	ExecutionTime time.Time `json:"execution_time"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
}

type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// TradeRecord is one entry of a trade snapshot.
type TradeRecord struct {
	Symbol    string      `json:"symbol"`
	Side      market.Side `json:"side"`
	Volume    float64     `json:"volume"`
	OpenPrice float64     `json:"open_price"`
	ExitPrice *float64    `json:"exit_price,omitempty"`
	Profit    float64     `json:"profit"`
	Status    TradeStatus `json:"status"`
	OpenedAt  *time.Time  `json:"opened_at,omitempty"`
	ClosedAt  *time.Time  `json:"closed_at,omitempty"`
}

// TradeUpdate is the consolidated snapshot posted each reporting cycle.
type TradeUpdate struct {
	AccountID string                 `json:"account_id"`
	Trades    map[string]TradeRecord `json:"trades"`
}

type ModifyRequest struct {
	Ticket     uint64  `json:"ticket" validate:"gt=0"`
	StopLoss   float64 `json:"sl" validate:"gte=0"`
	TakeProfit float64 `json:"tp" validate:"gte=0"`
}
