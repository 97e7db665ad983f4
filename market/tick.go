package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type TickSource interface {
	Tick(ctx context.Context, symbol string) (Tick, error)
}

type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// PriceFor returns the price a new order on side fills at: longs buy the
// ask, shorts sell the bid.
func (t Tick) PriceFor(side Side) float64 {
	if side == Sell {
		return t.Bid
	}
	return t.Ask
}

// CloseFor returns the price a position on side is closed at.
func (t Tick) CloseFor(side Side) float64 {
	return t.PriceFor(side.Opposite())
}

type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

func (ts *TickStore) Set(t Tick) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.ticks[t.Symbol] = t
}

func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, fmt.Errorf("no price for %s", symbol)
	}
	return t, nil
}
