// market/instruments.go
package market

import (
	"fmt"
	"strings"
)

// TradeMode mirrors the terminal's per-symbol trade permission.
type TradeMode string

const (
	TradeDisabled  TradeMode = "disabled"
	TradeLongOnly  TradeMode = "long_only"
	TradeShortOnly TradeMode = "short_only"
	TradeCloseOnly TradeMode = "close_only"
	TradeFull      TradeMode = "full"
)

// Allows reports whether a new position on side may be opened.
func (m TradeMode) Allows(side Side) bool {
	switch m {
	case TradeFull:
		return true
	case TradeLongOnly:
		return side == Buy
	case TradeShortOnly:
		return side == Sell
	default:
		return false
	}
}

// ParseTradeMode accepts the snake_case names above and the terminal's own
// SYMBOL_TRADE_MODE_* spellings. An empty mode means full trading.
func ParseTradeMode(s string) (TradeMode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "symbol_trade_mode_")
	switch v {
	case "longonly":
		v = string(TradeLongOnly)
	case "shortonly":
		v = string(TradeShortOnly)
	case "closeonly":
		v = string(TradeCloseOnly)
	}
	m := TradeMode(v)
	switch m {
	case TradeDisabled, TradeLongOnly, TradeShortOnly, TradeCloseOnly, TradeFull:
		return m, nil
	case "":
		return TradeFull, nil
	}
	return "", fmt.Errorf("unknown trade mode %q", s)
}

func (m *TradeMode) UnmarshalText(b []byte) error {
	v, err := ParseTradeMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

type SymbolInfo struct {
	Name       string    `json:"name" yaml:"name"`
	Digits     int       `json:"digits" yaml:"digits"`
	Point      float64   `json:"point" yaml:"point"`
	Spread     int       `json:"spread" yaml:"spread"` // in points
	VolumeMin  float64   `json:"volume_min" yaml:"volume_min"`
	VolumeMax  float64   `json:"volume_max" yaml:"volume_max"`
	VolumeStep float64   `json:"volume_step" yaml:"volume_step"`
	TickSize   float64   `json:"tick_size" yaml:"tick_size"`
	TickValue  float64   `json:"tick_value" yaml:"tick_value"` // account currency per tick per lot
	TradeMode  TradeMode `json:"trade_mode" yaml:"trade_mode"`
	MarginRate float64   `json:"margin_rate" yaml:"margin_rate"`
	Contract   float64   `json:"contract_size" yaml:"contract_size"`
}

// Symbols is the default metadata used by the paper broker.
var Symbols = map[string]SymbolInfo{
	"EURUSD": {
		Name:       "EURUSD",
		Digits:     5,
		Point:      0.00001,
		Spread:     12,
		VolumeMin:  0.01,
		VolumeMax:  100,
		VolumeStep: 0.01,
		TickSize:   0.00001,
		TickValue:  1,
		TradeMode:  TradeFull,
		MarginRate: 0.02,
		Contract:   100000,
	},
	"GBPUSD": {
		Name:       "GBPUSD",
		Digits:     5,
		Point:      0.00001,
		Spread:     15,
		VolumeMin:  0.01,
		VolumeMax:  100,
		VolumeStep: 0.01,
		TickSize:   0.00001,
		TickValue:  1,
		TradeMode:  TradeFull,
		MarginRate: 0.02,
		Contract:   100000,
	},
	"USDJPY": {
		Name:       "USDJPY",
		Digits:     3,
		Point:      0.001,
		Spread:     14,
		VolumeMin:  0.01,
		VolumeMax:  100,
		VolumeStep: 0.01,
		TickSize:   0.001,
		TickValue:  0.67,
		TradeMode:  TradeFull,
		MarginRate: 0.02,
		Contract:   100000,
	},
	"XAUUSD": {
		Name:       "XAUUSD",
		Digits:     2,
		Point:      0.01,
		Spread:     25,
		VolumeMin:  0.01,
		VolumeMax:  50,
		VolumeStep: 0.01,
		TickSize:   0.01,
		TickValue:  1,
		TradeMode:  TradeFull,
		MarginRate: 0.05,
		Contract:   100,
	},
}
