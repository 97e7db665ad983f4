// Package reconcile builds the trade snapshot posted to the backend each
// reporting cycle: open positions plus positions closed inside a lookback
// window, rebuilt from broker deal history and deduplicated against a
// ledger of already reported keys.
package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/market"
)

// OpenPolicy controls how open positions are reported.
type OpenPolicy string

const (
	// OpenOnce reports each open ticket a single time per ledger lifetime.
	OpenOnce OpenPolicy = "once"
	// OpenAlways reports every open position every cycle so floating
	// profit stays current. Open keys never enter the ledger.
	OpenAlways OpenPolicy = "always"
)

func ParseOpenPolicy(s string) (OpenPolicy, error) {
	switch OpenPolicy(s) {
	case "", OpenOnce:
		return OpenOnce, nil
	case OpenAlways:
		return OpenAlways, nil
	}
	return "", fmt.Errorf("unknown open policy %q", s)
}

// State is the dedup state carried between cycles. It is a value: every
// change produces a new State.
type State struct {
	ledger *Ledger
}

func NewState(capacity int, keys ...string) State {
	return State{ledger: NewLedger(capacity, keys...)}
}

func (s State) Ledger() *Ledger { return s.ledger }

func (s State) Reported(key string) bool { return s.ledger.Has(key) }

// Commit returns the state after keys were accepted by the backend.
func (s State) Commit(keys []string) State {
	if len(keys) == 0 {
		return s
	}
	return State{ledger: s.ledger.With(keys...)}
}

// Closed is a closed position rebuilt from its deals.
type Closed struct {
	PositionID uint64
	Symbol     string
	Side       market.Side
	Volume     float64
	OpenPrice  float64
	ExitPrice  float64
	Profit     float64
	OpenTime   time.Time // zero when no entry deal was in the window
	CloseTime  time.Time
}

// Result is one cycle's snapshot and the ledger keys it would commit.
type Result struct {
	Trades map[string]genesis.TradeRecord
	Keys   []string
	Closed []Closed
	Open   int
	// Tracked counts the ledger keys the current window needs, reported
	// or not. A ledger smaller than this keeps forgetting and reposting.
	Tracked int
}

func (r Result) Empty() bool { return len(r.Trades) == 0 }

// Reconcile computes the snapshot for the given open positions and deal
// history. It does not modify st.
func Reconcile(positions []broker.Position, deals []broker.Deal, st State, policy OpenPolicy) Result {
	res := Result{Trades: make(map[string]genesis.TradeRecord)}

	open := make(map[uint64]bool, len(positions))
	for _, p := range positions {
		open[p.Ticket] = true
		if policy != OpenAlways {
			res.Tracked++
		}

		key := OpenKey(p.Ticket)
		if policy != OpenAlways && st.Reported(key) {
			continue
		}
		opened := p.OpenTime
		res.Trades[strconv.FormatUint(p.Ticket, 10)] = genesis.TradeRecord{
			Symbol:    p.Symbol,
			Side:      p.Side,
			Volume:    p.Volume,
			OpenPrice: p.OpenPrice,
			Profit:    p.Profit,
			Status:    genesis.TradeOpen,
			OpenedAt:  &opened,
		}
		res.Open++
		if policy != OpenAlways {
			res.Keys = append(res.Keys, key)
		}
	}

	closedIDs := make(map[uint64]bool)
	for _, d := range deals {
		if d.Entry == broker.EntryOut && !open[d.PositionID] {
			closedIDs[d.PositionID] = true
		}
	}
	res.Tracked += len(closedIDs)

	for _, c := range closedPositions(deals, open, st) {
		exit, openedAt, closedAt := c.ExitPrice, c.OpenTime, c.CloseTime
		rec := genesis.TradeRecord{
			Symbol:    c.Symbol,
			Side:      c.Side,
			Volume:    c.Volume,
			OpenPrice: c.OpenPrice,
			ExitPrice: &exit,
			Profit:    c.Profit,
			Status:    genesis.TradeClosed,
			ClosedAt:  &closedAt,
		}
		if !openedAt.IsZero() {
			rec.OpenedAt = &openedAt
		}
		res.Trades[strconv.FormatUint(c.PositionID, 10)] = rec
		res.Keys = append(res.Keys, ClosedKey(c.PositionID))
		res.Closed = append(res.Closed, c)
	}

	return res
}

// closedPositions pairs exit deals with their entry deals. Exits of a
// position that is still open are partial closes and wait until the
// position is gone. Several exits of one position are merged. The earliest
// entry deal supplies the open side, price and time.
func closedPositions(deals []broker.Deal, open map[uint64]bool, st State) []Closed {
	sorted := append([]broker.Deal(nil), deals...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	entries := make(map[uint64]broker.Deal)
	for _, d := range sorted {
		if d.Entry != broker.EntryIn {
			continue
		}
		if _, ok := entries[d.PositionID]; !ok {
			entries[d.PositionID] = d
		}
	}

	var (
		order  []uint64
		byPos  = make(map[uint64]*Closed)
		weight = make(map[uint64]float64)
		exits  = make(map[uint64]int)
	)
	for _, d := range sorted {
		if d.Entry != broker.EntryOut || open[d.PositionID] {
			continue
		}
		if st.Reported(ClosedKey(d.PositionID)) {
			continue
		}

		c, ok := byPos[d.PositionID]
		if !ok {
			c = &Closed{PositionID: d.PositionID, Symbol: d.Symbol, Side: d.Type.Opposite()}
			if in, found := entries[d.PositionID]; found {
				c.Side = in.Type
				c.OpenPrice = in.Price
				c.OpenTime = in.Time
			}
			byPos[d.PositionID] = c
			order = append(order, d.PositionID)
		}
		c.Volume += d.Volume
		c.Profit += d.Profit
		weight[d.PositionID] += d.Price * d.Volume
		exits[d.PositionID]++
		if !d.Time.Before(c.CloseTime) {
			c.CloseTime = d.Time
			c.ExitPrice = d.Price
		}
	}

	out := make([]Closed, 0, len(order))
	for _, id := range order {
		c := byPos[id]
		if exits[id] > 1 && c.Volume > 0 {
			c.ExitPrice = weight[id] / c.Volume
		}
		out = append(out, *c)
	}
	return out
}
