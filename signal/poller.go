// Package signal polls the backend for new signals and hands each one, in
// id order, to the dispatcher exactly once per process lifetime.
package signal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/metrics"
	"github.com/rustyeddy/genesis/state"
)

type Source interface {
	Signals(ctx context.Context, req genesis.SignalsRequest) (genesis.SignalBatch, error)
}

// Handler executes accepted signals and reports rejected ones.
type Handler interface {
	Dispatch(ctx context.Context, s genesis.Signal) genesis.TradeReport
	Reject(ctx context.Context, r genesis.RejectedSignal) genesis.TradeReport
}

// Cursor is the high-water-mark of processed signal ids. It never moves
// backwards.
type Cursor struct {
	id int64
}

func (c Cursor) ID() int64 { return c.id }

// Advance moves the cursor to id if id is ahead of it.
func (c *Cursor) Advance(id int64) bool {
	if id <= c.id {
		return false
	}
	c.id = id
	return true
}

type Config struct {
	AccountID string
	Symbols   []string
}

type Poller struct {
	cfg   Config
	src   Source
	h     Handler
	store state.Store
	log   zerolog.Logger

	mu     sync.Mutex
	cursor Cursor
}

func NewPoller(cfg Config, src Source, h Handler, store state.Store, log zerolog.Logger) *Poller {
	if store == nil {
		store = state.NewMemory()
	}
	return &Poller{cfg: cfg, src: src, h: h, store: store, log: log}
}

// Load restores the cursor from the state store.
func (p *Poller) Load(ctx context.Context) error {
	id, err := p.store.LoadCursor(ctx, p.cfg.AccountID)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	p.mu.Lock()
	p.cursor.Advance(id)
	p.mu.Unlock()
	metrics.Cursor.Set(float64(id))
	return nil
}

func (p *Poller) Cursor() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor.ID()
}

type item struct {
	sig      *genesis.Signal
	rejected *genesis.RejectedSignal
}

func (it item) id() int64 {
	if it.sig != nil {
		return it.sig.ID
	}
	return it.rejected.ID
}

// Poll fetches one batch and processes it. It returns the number of signals
// handed on (dispatched or reported as rejected). A failed fetch leaves the
// cursor untouched; the next poll asks again.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	start := p.Cursor()

	batch, err := p.src.Signals(ctx, genesis.SignalsRequest{
		AccountID:    p.cfg.AccountID,
		LastSignalID: start,
		Symbols:      p.cfg.Symbols,
	})
	if err != nil {
		return 0, fmt.Errorf("get signals: %w", err)
	}

	items := make([]item, 0, len(batch.Signals)+len(batch.Rejected))
	for i := range batch.Signals {
		items = append(items, item{sig: &batch.Signals[i]})
	}
	for i := range batch.Rejected {
		items = append(items, item{rejected: &batch.Rejected[i]})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].id() < items[j].id() })

	metrics.SignalsReceived.Add(float64(len(items)))

	// Once a signal is claimed it is dispatched and reported to the end,
	// even if the poll deadline passes meanwhile. Per-request timeouts in
	// the gateway and backend client still bound each call.
	work := context.WithoutCancel(ctx)

	handled := 0
	for i, it := range items {
		id := it.id()

		// Unclaimed signals stay behind the cursor for the next poll.
		if ctx.Err() != nil {
			p.log.Warn().Int64("signal", id).Int("deferred", len(items)-i).Msg("poll deadline reached, deferring rest of batch")
			break
		}

		// Advance before handling so a signal that fails mid-way is not
		// fetched again.
		p.mu.Lock()
		fresh := p.cursor.Advance(id)
		p.mu.Unlock()
		if !fresh {
			metrics.SignalsSkipped.Inc()
			p.log.Debug().Int64("signal", id).Int64("cursor", p.Cursor()).Msg("skipping already processed signal")
			continue
		}
		metrics.Cursor.Set(float64(id))

		if it.rejected != nil {
			metrics.SignalsRejected.Inc()
			p.log.Warn().Int64("signal", id).Str("reason", it.rejected.Reason).Msg("rejecting invalid signal")
			p.h.Reject(work, *it.rejected)
		} else {
			metrics.SignalsDispatched.WithLabelValues(it.sig.Symbol, string(it.sig.Action)).Inc()
			p.h.Dispatch(work, *it.sig)
		}
		handled++
	}

	if end := p.Cursor(); end != start {
		if err := p.store.SaveCursor(work, p.cfg.AccountID, end); err != nil {
			p.log.Warn().Err(err).Int64("cursor", end).Msg("persist cursor")
		}
	}
	return handled, nil
}
