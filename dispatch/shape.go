package dispatch

import (
	"fmt"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/market"
)

// OrderType picks the broker order for a signal at the current tick.
// Immediate actions and forced signals fill at market. Anticipated entries
// rest as limit orders when they are better than the market and as stop
// orders when they are worse; an entry exactly at market fills now.
func OrderType(s genesis.Signal, tick market.Tick) (broker.OrderType, error) {
	side := s.Action.Side()
	if s.Action.Immediate() || s.ForceExecution {
		return marketOrder(side), nil
	}
	if s.EntryPrice <= 0 {
		return "", fmt.Errorf("%s signal has no entry price", s.Action)
	}

	switch side {
	case market.Buy:
		switch {
		case s.EntryPrice < tick.Ask:
			return broker.OrderBuyLimit, nil
		case s.EntryPrice > tick.Ask:
			return broker.OrderBuyStop, nil
		}
	case market.Sell:
		switch {
		case s.EntryPrice > tick.Bid:
			return broker.OrderSellLimit, nil
		case s.EntryPrice < tick.Bid:
			return broker.OrderSellStop, nil
		}
	}
	return marketOrder(side), nil
}

func marketOrder(side market.Side) broker.OrderType {
	if side == market.Sell {
		return broker.OrderSell
	}
	return broker.OrderBuy
}

// checkLevels verifies stop loss and take profit sit on the right side of
// entry. Zero levels are unset and always pass.
func checkLevels(side market.Side, entry, sl, tp float64) error {
	if side == market.Buy {
		if sl > 0 && sl >= entry {
			return fmt.Errorf("stop loss %.5f must be below entry %.5f for a buy", sl, entry)
		}
		if tp > 0 && tp <= entry {
			return fmt.Errorf("take profit %.5f must be above entry %.5f for a buy", tp, entry)
		}
		return nil
	}
	if sl > 0 && sl <= entry {
		return fmt.Errorf("stop loss %.5f must be above entry %.5f for a sell", sl, entry)
	}
	if tp > 0 && tp >= entry {
		return fmt.Errorf("take profit %.5f must be below entry %.5f for a sell", tp, entry)
	}
	return nil
}
