// Package command applies close and modify requests queued on the backend.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/genesis/broker"
	"github.com/rustyeddy/genesis/genesis"
	"github.com/rustyeddy/genesis/metrics"
)

// Queue is the backend side of remote commands.
type Queue interface {
	CloseQueue(ctx context.Context, accountID string) ([]uint64, error)
	ModifyQueue(ctx context.Context, accountID string) ([]genesis.ModifyRequest, int, error)
}

// Executor is the broker side of remote commands.
type Executor interface {
	ClosePosition(ctx context.Context, ticket uint64) error
	ModifyPosition(ctx context.Context, ticket uint64, sl, tp float64) error
}

type Poller struct {
	accountID string
	queue     Queue
	exec      Executor
	log       zerolog.Logger
}

func NewPoller(accountID string, q Queue, exec Executor, log zerolog.Logger) *Poller {
	return &Poller{accountID: accountID, queue: q, exec: exec, log: log}
}

// Result counts what one poll did.
type Result struct {
	Closed   int
	Modified int
	Failed   int
	Dropped  int
}

// Poll drains both queues once. A failing ticket is logged and skipped;
// commands are not retried locally.
func (p *Poller) Poll(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)

	tickets, err := p.queue.CloseQueue(ctx, p.accountID)
	if err != nil {
		errs = append(errs, fmt.Errorf("close queue: %w", err))
	}
	for _, t := range tickets {
		if err := p.exec.ClosePosition(ctx, t); err != nil {
			res.Failed++
			metrics.Commands.WithLabelValues("close", "failed").Inc()
			p.log.Warn().Err(err).Uint64("ticket", t).Msg("close failed")
			continue
		}
		res.Closed++
		metrics.Commands.WithLabelValues("close", "ok").Inc()
		p.log.Info().Uint64("ticket", t).Msg("position closed")
	}

	mods, dropped, err := p.queue.ModifyQueue(ctx, p.accountID)
	if err != nil {
		errs = append(errs, fmt.Errorf("modify queue: %w", err))
	}
	res.Dropped = dropped
	if dropped > 0 {
		p.log.Warn().Int("dropped", dropped).Msg("modify requests without a ticket")
	}
	for _, m := range mods {
		sl, tp := level(m.StopLoss), level(m.TakeProfit)
		if err := p.exec.ModifyPosition(ctx, m.Ticket, sl, tp); err != nil {
			res.Failed++
			metrics.Commands.WithLabelValues("modify", "failed").Inc()
			p.log.Warn().Err(err).Uint64("ticket", m.Ticket).Msg("modify failed")
			continue
		}
		res.Modified++
		metrics.Commands.WithLabelValues("modify", "ok").Inc()
		p.log.Info().Uint64("ticket", m.Ticket).Float64("sl", m.StopLoss).Float64("tp", m.TakeProfit).Msg("position modified")
	}

	return res, errors.Join(errs...)
}

// level maps a zero price to "leave unchanged".
func level(v float64) float64 {
	if v == 0 {
		return broker.NoChange
	}
	return v
}
